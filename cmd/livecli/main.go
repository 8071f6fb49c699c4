// livecli connects to the live order channel from a terminal. Incoming order
// events open dialogs one at a time, highest priority first; typed lines are
// either answers to the open dialog or commands.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/fieldhub/internal/config"
	"github.com/sudo-init-do/fieldhub/internal/liveclient"
	"github.com/sudo-init-do/fieldhub/internal/modalqueue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		server   string
		username string
		password string
		city     string
		currency string
		logLevel string
		debounce time.Duration
	)

	flagSet := pflag.NewFlagSet("livecli", pflag.ContinueOnError)
	flagSet.StringVarP(&server, "server", "s", "http://localhost:8080", "server base URL")
	flagSet.StringVarP(&username, "username", "u", "", "account to log in as")
	flagSet.StringVarP(&password, "password", "p", "", "account password (default: $FIELDHUB_PASSWORD)")
	flagSet.StringVar(&city, "city", "", "city to announce on connect")
	flagSet.StringVar(&currency, "currency", "NGN", "currency for new orders and jobs")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level written to stderr")
	flagSet.DurationVar(&debounce, "debounce", 300*time.Millisecond, "pause between dialogs")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if password == "" {
		password = os.Getenv("FIELDHUB_PASSWORD")
	}
	if username == "" || password == "" {
		return errors.New("--username and --password are required")
	}

	logger := config.NewLogger(os.Stderr, logLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := liveclient.New(server, logger)
	if err := client.Login(ctx, username, password); err != nil {
		return err
	}
	if err := client.Connect(ctx, city); err != nil {
		return err
	}
	defer client.Close()
	fmt.Printf("connected as %s. type 'help' for commands.\n", username)

	in := newInput(os.Stdin)
	presenter := modalqueue.PresenterFunc(func(ctx context.Context, task modalqueue.Task) error {
		fmt.Println(liveclient.Describe(task))
		line, err := in.answer(ctx)
		if err != nil {
			return err
		}
		if event, payload, ok := liveclient.Reply(task, line); ok {
			return client.Send(event, payload)
		}
		return nil
	})
	queue := modalqueue.New(presenter, debounce)
	dialogs := liveclient.NewDialogs(queue, username, logger)
	def := liveclient.Defaults{City: city, Currency: currency}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return client.Listen(gctx, dialogs.Handle)
	})
	g.Go(func() error {
		err := queue.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return in.commands(gctx, func(line string) {
			if line == "help" {
				fmt.Println(liveclient.Usage)
				return
			}
			event, payload, err := liveclient.ParseCommand(line, def)
			if err != nil {
				fmt.Println(err)
				return
			}
			if err := client.Send(event, payload); err != nil {
				fmt.Println(err)
			}
		})
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// input routes stdin lines to the open dialog when there is one, otherwise
// to the command handler.
type input struct {
	lines chan string

	mu     sync.Mutex
	dialog chan string
}

func newInput(r io.Reader) *input {
	in := &input{lines: make(chan string)}
	go func() {
		defer close(in.lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			in.lines <- sc.Text()
		}
	}()
	return in
}

func (in *input) answer(ctx context.Context) (string, error) {
	ch := make(chan string, 1)
	in.mu.Lock()
	in.dialog = ch
	in.mu.Unlock()
	defer func() {
		in.mu.Lock()
		in.dialog = nil
		in.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-ch:
		return line, nil
	}
}

func (in *input) commands(ctx context.Context, handle func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-in.lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			in.mu.Lock()
			dialog := in.dialog
			in.mu.Unlock()
			if dialog != nil {
				dialog <- line
				continue
			}
			if line != "" {
				handle(line)
			}
		}
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "livecli: terminal client for the live order channel\n\nUsage:\n  livecli --username NAME --password PASS [flags]\n\nFlags:\n")
	flagSet.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\n%s\n", liveclient.Usage)
}
