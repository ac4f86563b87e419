package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"schedula/client/internal/domain"
	"schedula/client/internal/service/account"
	"schedula/client/internal/service/appointments"
	"schedula/client/internal/service/businesses"
)

const commandHelp = `commands:
  login --email E [--password P]          password defaults to $SCHEDULA_PASSWORD
  register --email E [--password P] [--first-name N] [--last-name N] [--phone P]
  logout
  me
  businesses [--search S] [--category C]
  business <id-or-slug>
  services <business-id>
  categories
  availability <business-id> --service ID --date YYYY-MM-DD
  appointments list [--status S] [--from RFC3339] [--to RFC3339]
  appointments create --service ID --start RFC3339 [--end RFC3339] [--business ID] [--notes N] [--idempotency-key K]
  appointments cancel <id> [--reason R]
  favorites list
  favorites toggle <business-id>
  favorites check <business-id>
`

var (
	errUsage       = errors.New("usage: schedula [flags] <command> [args]\n\n" + commandHelp)
	errNotLoggedIn = errors.New("not logged in; run `schedula login` first")
)

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "register":
		return a.register(ctx, rest)
	case "logout":
		if err := a.session.Logout(ctx); err != nil {
			return err
		}
		return a.print(map[string]bool{"logged_in": false})
	case "me":
		return a.me(ctx)
	case "businesses":
		return a.listBusinesses(ctx, rest)
	case "business":
		if len(rest) != 1 {
			return errUsage
		}
		b, err := a.businesses.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		return a.print(b)
	case "services":
		if len(rest) != 1 {
			return errUsage
		}
		svcs, err := a.businesses.Services(ctx, rest[0])
		if err != nil {
			return err
		}
		return a.print(svcs)
	case "categories":
		cats, err := a.businesses.Categories(ctx)
		if err != nil {
			return err
		}
		return a.print(cats)
	case "availability":
		return a.availability(ctx, rest)
	case "appointments":
		return a.appointmentsCmd(ctx, rest)
	case "favorites":
		return a.favoritesCmd(ctx, rest)
	}
	return fmt.Errorf("unknown command %q\n\n%s", cmd, commandHelp)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw := *password
	if pw == "" {
		pw = os.Getenv("SCHEDULA_PASSWORD")
	}
	if err := a.session.Login(ctx, *email, pw); err != nil {
		return err
	}
	return a.print(a.session.State())
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("register", pflag.ContinueOnError)
	var in account.RegisterInput
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", "", "account password")
	fs.StringVar(&in.FirstName, "first-name", "", "first name")
	fs.StringVar(&in.LastName, "last-name", "", "last name")
	fs.StringVar(&in.Phone, "phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if in.Password == "" {
		in.Password = os.Getenv("SCHEDULA_PASSWORD")
	}
	in.PasswordConfirm = in.Password
	if err := a.session.Register(ctx, in); err != nil {
		return err
	}
	return a.print(a.session.State())
}

func (a *app) me(ctx context.Context) error {
	if !a.session.IsLoggedIn() {
		return errNotLoggedIn
	}
	u, err := a.accounts.Me(ctx)
	if err != nil {
		return err
	}
	return a.print(u)
}

func (a *app) listBusinesses(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("businesses", pflag.ContinueOnError)
	var q businesses.Query
	fs.StringVar(&q.Search, "search", "", "free text search")
	fs.StringVar(&q.Category, "category", "", "category filter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := a.businesses.List(ctx, q)
	if err != nil {
		return err
	}
	return a.print(list)
}

func (a *app) availability(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("availability", pflag.ContinueOnError)
	serviceID := fs.String("service", "", "service id")
	day := fs.String("date", time.Now().Format("2006-01-02"), "day to check, YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	date, err := time.Parse("2006-01-02", *day)
	if err != nil {
		return fmt.Errorf("invalid --date: %w", err)
	}
	slots, err := a.appointments.Availability(ctx, fs.Arg(0), *serviceID, date)
	if err != nil {
		return err
	}
	return a.print(slots)
}

func (a *app) appointmentsCmd(ctx context.Context, args []string) error {
	if !a.session.IsLoggedIn() {
		return errNotLoggedIn
	}
	if len(args) == 0 {
		return errUsage
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		fs := pflag.NewFlagSet("appointments list", pflag.ContinueOnError)
		status := fs.String("status", "", "pending, confirmed, cancelled or completed")
		from := fs.String("from", "", "window start, RFC3339")
		to := fs.String("to", "", "window end, RFC3339")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		f := appointments.ListFilter{Status: domain.AppointmentStatus(*status)}
		var err error
		if f.From, err = parseOptionalTime("from", *from); err != nil {
			return err
		}
		if f.To, err = parseOptionalTime("to", *to); err != nil {
			return err
		}
		list, err := a.appointments.List(ctx, f)
		if err != nil {
			return err
		}
		return a.print(list)

	case "create":
		fs := pflag.NewFlagSet("appointments create", pflag.ContinueOnError)
		var in appointments.CreateInput
		start := fs.String("start", "", "slot start, RFC3339")
		end := fs.String("end", "", "slot end, RFC3339")
		fs.StringVar(&in.ServiceID, "service", "", "service id")
		fs.StringVar(&in.BusinessID, "business", "", "business id")
		fs.StringVar(&in.Notes, "notes", "", "notes for the business")
		fs.StringVar(&in.IdempotencyKey, "idempotency-key", "", "reuse to make a retried booking safe")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		var err error
		if in.Start, err = parseOptionalTime("start", *start); err != nil {
			return err
		}
		if in.End, err = parseOptionalTime("end", *end); err != nil {
			return err
		}
		appt, err := a.appointments.Create(ctx, in)
		if err != nil {
			return err
		}
		return a.print(appt)

	case "cancel":
		fs := pflag.NewFlagSet("appointments cancel", pflag.ContinueOnError)
		reason := fs.String("reason", "", "cancellation reason")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errUsage
		}
		appt, err := a.appointments.Cancel(ctx, fs.Arg(0), *reason)
		if err != nil {
			return err
		}
		return a.print(appt)
	}
	return errUsage
}

func (a *app) favoritesCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "list":
		if err := a.favorites.Load(ctx); err != nil {
			return err
		}
		return a.print(a.favorites.Entries())
	case "toggle":
		if len(args) != 2 {
			return errUsage
		}
		if err := a.favorites.Toggle(ctx, args[1]); err != nil {
			return err
		}
		return a.print(map[string]any{
			"business_id": args[1],
			"is_favorite": a.favorites.IsFavorite(args[1]),
		})
	case "check":
		if len(args) != 2 {
			return errUsage
		}
		if !a.session.IsLoggedIn() {
			return errNotLoggedIn
		}
		on, err := a.favoritesAPI.Check(ctx, args[1])
		if err != nil {
			return err
		}
		return a.print(map[string]any{"business_id": args[1], "is_favorite": on})
	}
	return errUsage
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseOptionalTime(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return t, nil
}
