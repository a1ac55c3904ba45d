package supervisor

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

const childEnv = "VIDRELAY_CHILD"

// IsChild reports whether this process was forked by the supervisor.
func IsChild() bool {
	return os.Getenv(childEnv) == "1"
}

// Run launches one independent bot process per token by re-execing this
// binary with a single token in the environment. The processes share
// nothing in memory; the cookie jar and relay session meet only on disk.
// Blocks until every child exits; the first failure is returned.
func Run(tokens []string, statusPort string) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(tokens))

	for i, token := range tokens {
		cmd := exec.Command(os.Args[0])
		cmd.Env = ChildEnv(os.Environ(), token, childStatusPort(statusPort, i))
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start bot process %d: %w", i, err)
		}
		log.Printf("[Supervisor] Started bot process %d (pid %d)", i, cmd.Process.Pid)

		wg.Add(1)
		go func(i int, cmd *exec.Cmd) {
			defer wg.Done()
			if err := cmd.Wait(); err != nil {
				errCh <- fmt.Errorf("bot process %d exited: %w", i, err)
			}
		}(i, cmd)
	}

	wg.Wait()
	close(errCh)
	return <-errCh
}

// ChildEnv rewrites the parent environment for one child: exactly one
// token, a per-child status port, and the child marker.
func ChildEnv(base []string, token, statusPort string) []string {
	env := make([]string, 0, len(base)+3)
	for _, kv := range base {
		if strings.HasPrefix(kv, "BOT_TOKENS=") ||
			strings.HasPrefix(kv, "BOT_TOKEN=") ||
			strings.HasPrefix(kv, "STATUS_PORT=") ||
			strings.HasPrefix(kv, childEnv+"=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "BOT_TOKENS="+token, childEnv+"=1")
	if statusPort != "" {
		env = append(env, "STATUS_PORT="+statusPort)
	}
	return env
}

// childStatusPort offsets the configured base port per child so the
// status servers do not collide.
func childStatusPort(base string, index int) string {
	if base == "" {
		return ""
	}
	p, err := strconv.Atoi(base)
	if err != nil {
		return ""
	}
	return strconv.Itoa(p + index)
}
