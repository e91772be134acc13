package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-api/internal/app"
	"github.com/BuzzLyutic/todo-api/internal/repo"
	"github.com/BuzzLyutic/todo-api/internal/testutil"
)

type cli struct {
	t           *testing.T
	apiURL      string
	sessionFile string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	srv := httptest.NewServer(app.NewRouter(app.Deps{
		Logger:          zap.NewNop(),
		Provider:        testutil.NewFakeProvider(),
		Tasks:           repo.NewMemoryTaskRepo(),
		MaxTasksPerUser: 50,
		AllowedOrigins:  []string{"*"},
	}))
	t.Cleanup(srv.Close)

	return &cli{t: t, apiURL: srv.URL, sessionFile: filepath.Join(t.TempDir(), "session.json")}
}

// run выполняет команду как из терминала; stdin подставляется вместо ввода пароля.
func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--api-url", c.apiURL, "--session-file", c.sessionFile}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Workflow(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("", "list")
	assert.ErrorIs(t, err, errNotLoggedIn)

	out, err := c.run("secret123\n", "register", "ana@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered and logged in as ana@example.com")

	out, err = c.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ana@example.com")

	out, err = c.run("", "add", "Buy", "milk")
	require.NoError(t, err)
	assert.Contains(t, out, "Buy milk")

	_, err = c.run("", "add", "Walk the dog")
	require.NoError(t, err)

	_, err = c.run("", "done", "1")
	require.NoError(t, err)

	out, err = c.run("", "list", "--order", "pending")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Walk the dog"), strings.Index(out, "Buy milk"))
	assert.Contains(t, out, "Pending: 1")
	assert.Contains(t, out, "Completed: 1")
	assert.Contains(t, out, "Total: 2")

	_, err = c.run("", "edit", "2", "Walk", "the", "cat")
	require.NoError(t, err)

	_, err = c.run("", "rm", "1")
	require.NoError(t, err)

	out, err = c.run("", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Buy milk")
	assert.Contains(t, out, "Walk the cat")

	_, err = c.run("", "list", "--order", "newest")
	assert.Error(t, err)

	_, err = c.run("", "done", "abc")
	assert.Error(t, err)

	out, err = c.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = c.run("", "list")
	assert.ErrorIs(t, err, errNotLoggedIn)

	// сессия переживает перезапуск: логинимся и видим задачи в новом процессе
	_, err = c.run("secret123\n", "login", "ana@example.com")
	require.NoError(t, err)
	out, err = c.run("", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Walk the cat")
}

func TestCLI_LoginFailure(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("secret123\n", "register", "ana@example.com")
	require.NoError(t, err)
	_, err = c.run("", "logout")
	require.NoError(t, err)

	_, err = c.run("wrong\n", "login", "ana@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid email or password")

	_, err = os.Stat(c.sessionFile)
	require.NoError(t, err)
	_, err = c.run("", "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestCLI_ConfigFromEnv(t *testing.T) {
	c := newCLI(t)
	t.Setenv("TODOCTL_API_URL", c.apiURL)
	t.Setenv("TODOCTL_SESSION_FILE", c.sessionFile)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("secret123\n"))
	cmd.SetArgs([]string{"register", "env@example.com"})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(c.sessionFile)
	assert.NoError(t, err)
}

func TestReadLine(t *testing.T) {
	got, err := readLine(strings.NewReader("pa ss\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "pa ss", got)

	got, err = readLine(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", got)

	_, err = readLine(strings.NewReader(""))
	assert.Error(t, err)
}
