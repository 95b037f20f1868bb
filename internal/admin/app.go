// Package admin implements lfadmin, the operator command line: activating
// accounts, creating administrators and requeueing stuck deliveries.
package admin

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/flagx"
	"github.com/dmitrijs2005/lostfound/internal/server/delivery"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

type userAdmin interface {
	ActivateByEmail(ctx context.Context, email string) (*models.User, error)
	CreateAdmin(ctx context.Context, email, password, fullName string) (*models.User, error)
}

type pendingResumer interface {
	ResumePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, job delivery.Job) delivery.Outcome
}

// Collector is the Enqueuer handed to services inside lfadmin. Jobs are
// kept until the requeue command dispatches them in the foreground.
type Collector struct {
	mu   sync.Mutex
	jobs []delivery.Job
}

func (c *Collector) Enqueue(job delivery.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, job)
	return nil
}

// Drain returns the collected jobs and forgets them.
func (c *Collector) Drain() []delivery.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	jobs := c.jobs
	c.jobs = nil
	return jobs
}

type App struct {
	users    userAdmin
	contacts pendingResumer
	worker   dispatcher
	queue    *Collector
	in       *bufio.Reader
	out      io.Writer
}

func NewApp(users userAdmin, contacts pendingResumer, worker dispatcher, queue *Collector, in io.Reader, out io.Writer) *App {
	return &App{
		users:    users,
		contacts: contacts,
		worker:   worker,
		queue:    queue,
		in:       bufio.NewReader(in),
		out:      out,
	}
}

var errUsage = errors.New("usage: lfadmin <activate|create-admin|requeue> [flags]")

// Run executes one command. args excludes the program name.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "activate":
		return a.activate(ctx, rest)
	case "create-admin":
		return a.createAdmin(ctx, rest)
	case "requeue":
		return a.requeue(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, errUsage.Error())
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

// commandFlags builds the flag set of one command. Callers filter args
// first since server configuration flags may follow the command.
func (a *App) commandFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *App) activate(ctx context.Context, args []string) error {
	fs := a.commandFlags("activate")
	email := fs.String("email", "", "email of the account to activate")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-email"})); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("activate: -email is required")
	}

	user, err := a.users.ActivateByEmail(ctx, *email)
	if err != nil {
		return fmt.Errorf("activate %s: %w", *email, err)
	}

	fmt.Fprintf(a.out, "activated %s (%s)\n", user.Email, user.ID)
	return nil
}

func (a *App) createAdmin(ctx context.Context, args []string) error {
	fs := a.commandFlags("create-admin")
	email := fs.String("email", "", "administrator email")
	name := fs.String("name", "", "administrator full name")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-email", "-name"})); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = GetSimpleText(a.in, "Email", a.out); err != nil {
			return err
		}
	}
	if *name == "" {
		if *name, err = GetSimpleText(a.in, "Full name", a.out); err != nil {
			return err
		}
	}

	password, err := GetPassword("Password", a.out)
	if err != nil {
		return err
	}
	confirm, err := GetPassword("Repeat password", a.out)
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("create-admin: passwords do not match")
	}

	user, err := a.users.CreateAdmin(ctx, *email, password, *name)
	if err != nil {
		return fmt.Errorf("create-admin %s: %w", *email, err)
	}

	fmt.Fprintf(a.out, "admin ready: %s (%s)\n", user.Email, user.ID)
	return nil
}

// requeue finds contact logs still pending and delivers them in the
// foreground. A row finalised by someone else meanwhile is skipped.
func (a *App) requeue(ctx context.Context, args []string) error {
	fs := a.commandFlags("requeue")
	older := fs.Duration("older", time.Minute, "only logs pending for at least this long")
	limit := fs.Int("limit", 100, "maximum number of logs to requeue")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-older", "-limit"})); err != nil {
		return err
	}

	n, err := a.contacts.ResumePending(ctx, *older, *limit)
	if err != nil {
		return fmt.Errorf("requeue: %w", err)
	}

	counts := map[models.DeliveryStatus]int{}
	skipped := 0
	for _, job := range a.queue.Drain() {
		out := a.worker.Dispatch(ctx, job)
		if out.Skipped {
			skipped++
			continue
		}
		counts[out.Status]++
	}

	fmt.Fprintf(a.out, "requeued %d: sent %d, failed %d, skipped %d, still pending %d\n",
		n, counts[models.DeliverySent], counts[models.DeliveryFailed], skipped, counts[models.DeliveryPending])
	return nil
}
