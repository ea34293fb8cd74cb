// Command hashpw prints a bcrypt hash suitable for APP_AUTH_USERS.
//
//	echo -n 'secret' | hashpw --user alice
//	alice:$2a$10$...
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/items-api/internal/auth"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("hashpw", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	user := fs.StringP("user", "u", "", "prefix the hash with user: for APP_AUTH_USERS")
	cost := fs.IntP("cost", "c", bcrypt.DefaultCost, "bcrypt cost")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	password, err := readPassword(fs.Args(), stdin)
	if err != nil {
		fmt.Fprintln(stderr, "hashpw:", err)
		return 1
	}

	hash, err := auth.HashPassword(password, *cost)
	if err != nil {
		fmt.Fprintln(stderr, "hashpw:", err)
		return 1
	}

	if *user != "" {
		if strings.ContainsAny(*user, ":,") {
			fmt.Fprintln(stderr, "hashpw: user must not contain ':' or ','")
			return 1
		}
		hash = *user + ":" + hash
	}

	fmt.Fprintln(stdout, hash)
	return 0
}

// readPassword takes the first positional argument or, failing that, the
// first line of stdin.
func readPassword(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
