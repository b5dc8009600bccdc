package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Navigate(ctx context.Context, tab Tab) error
	Browse(ctx context.Context, email string) error
	Post(ctx context.Context) error
	Attach(ctx context.Context, path string) error
	Delete(ctx context.Context, id string) error
	Details(ctx context.Context) error
	Password(ctx context.Context) error
	Image(ctx context.Context, path string) error
	DeleteAccount(ctx context.Context) error
	WhoAmI(ctx context.Context) error
}

// runREPL reads commands from reader and dispatches them to a until the
// user types "exit" or "quit" or input ends. Commands read their own
// follow-up input from the same reader.
//
//	Not logged in:
//	  - help             show available commands
//	  - register         create an account and log in
//	  - login            authenticate
//	  - exit | quit      leave the program
//
//	Logged in:
//	  - home             show your wall
//	  - browse <email>   show another user's profile and wall
//	  - account          show your profile
//	  - post             write on the wall on screen
//	  - attach <file>    attach an image or video to the next post
//	  - delete <id>      delete one of your posts
//	  - details          edit your profile
//	  - password         change your password
//	  - image <file>     set your profile image
//	  - deleteaccount    delete your account
//	  - whoami           print your profile
//	  - logout           log out
//
// Handlers report their own errors, so return values are ignored here.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("twidder %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: home, browse <email>, account, post, attach <file>, delete <id>, details, password, image <file>, deleteaccount, whoami, logout, exit")
			} else {
				printlnFn("Available commands: register, login, home, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "home":
			_ = a.Navigate(ctx, TabHome)

		case "account":
			_ = a.Navigate(ctx, TabAccount)

		case "browse":
			if len(args) == 0 {
				_ = a.Navigate(ctx, TabBrowse)
				continue
			}
			_ = a.Browse(ctx, args[0])

		case "post":
			_ = a.Post(ctx)

		case "attach":
			if len(args) == 0 {
				printlnFn("Usage: attach <file>")
				continue
			}
			_ = a.Attach(ctx, strings.Join(args, " "))

		case "delete":
			if len(args) == 0 {
				printlnFn("Usage: delete <id>")
				continue
			}
			_ = a.Delete(ctx, args[0])

		case "details":
			_ = a.Details(ctx)

		case "password":
			_ = a.Password(ctx)

		case "image":
			if len(args) == 0 {
				printlnFn("Usage: image <file>")
				continue
			}
			_ = a.Image(ctx, strings.Join(args, " "))

		case "deleteaccount":
			_ = a.DeleteAccount(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}
