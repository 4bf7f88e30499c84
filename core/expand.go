package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/template"

	"github.com/99designs/keyring"
)

// keyringOpen is swapped in tests.
var keyringOpen = keyring.Open

// expandFuncs are available in connection config values, e.g.
//
//	token: '{{ env "ECS_TOKEN" }}'
//	password: '{{ exec "pass show ecs" }}'
//	token: '{{ keyring "resttable" "ecs-prod" }}'
var expandFuncs = template.FuncMap{
	"env":     os.Getenv,
	"exec":    runCommand,
	"keyring": keyringLookup,
}

// runCommand runs a command line and returns its trimmed stdout.
// Pipelines are handed to sh.
func runCommand(line string) (string, error) {
	var cmd *exec.Cmd
	if strings.Contains(line, "|") {
		cmd = exec.Command("sh", "-c", line)
	} else {
		args := strings.Fields(line)
		if len(args) == 0 {
			return "", errors.New("exec: empty command")
		}
		cmd = exec.Command(args[0], args[1:]...)
	}

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("exec %q: %w", line, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func keyringLookup(service, key string) (string, error) {
	ring, err := keyringOpen(keyring.Config{ServiceName: service})
	if err != nil {
		return "", fmt.Errorf("keyring.Open: %w", err)
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("ring.Get: %w", err)
	}

	return string(item.Data), nil
}

// expand renders the template functions in a config value.
func expand(value string) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}

	tmpl, err := template.New("config").Funcs(expandFuncs).Option("missingkey=error").Parse(value)
	if err != nil {
		return "", fmt.Errorf("template.Parse: %w", err)
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, nil); err != nil {
		return "", fmt.Errorf("tmpl.Execute: %w", err)
	}

	return out.String(), nil
}
