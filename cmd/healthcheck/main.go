// Command healthcheck probes the server's liveness endpoint and exits 0/1.
// The container HEALTHCHECK instruction uses it so the final image needs no
// shell or curl.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/todo-platform/task-api/internal/httputil"
)

func main() {
	var (
		url     = flag.String("url", "http://127.0.0.1:8080/healthz", "Health endpoint to probe")
		timeout = flag.Duration("timeout", 3*time.Second, "Total probe timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := httputil.New(httputil.Config{Timeout: *timeout, MaxRetries: 1})
	resp, err := client.Get(ctx, *url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "unhealthy: status %d\n", resp.StatusCode)
		os.Exit(1)
	}
}
