//go:build !ci

package legocoder_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	chromeImage     = "chromedp/headless-shell:stable"
	containerPrefix = "chrome-e2e-legocoder-"
)

// startChrome runs headless Chrome in Docker and returns a browser context
// bounded by timeout. The container is removed when the test ends.
func startChrome(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()

	if _, err := exec.Command("docker", "version").CombinedOutput(); err != nil {
		t.Skip("Docker not available, skipping E2E test")
	}

	port, err := freePort()
	if err != nil {
		t.Fatalf("Failed to allocate Chrome port: %v", err)
	}
	name := fmt.Sprintf("%s%d", containerPrefix, port)
	_, _ = exec.Command("docker", "rm", "-f", name).CombinedOutput()

	if _, err := exec.Command("docker", "image", "inspect", chromeImage).CombinedOutput(); err != nil {
		pullCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if out, err := exec.CommandContext(pullCtx, "docker", "pull", chromeImage).CombinedOutput(); err != nil {
			t.Fatalf("Failed to pull %s: %v\n%s", chromeImage, err, out)
		}
	}

	// Linux shares the host network; elsewhere Docker runs in a VM and the
	// image's entrypoint forwards 9222.
	args := []string{"run", "-d", "--rm", "--memory", "512m", "--name", name}
	if runtime.GOOS == "linux" {
		args = append(args, "--network", "host", chromeImage, fmt.Sprintf("--remote-debugging-port=%d", port))
	} else {
		args = append(args, "-p", fmt.Sprintf("%d:9222", port), chromeImage)
	}
	if out, err := exec.Command("docker", args...).CombinedOutput(); err != nil {
		t.Fatalf("Failed to start Chrome container: %v\n%s", err, out)
	}
	t.Cleanup(func() {
		_, _ = exec.Command("docker", "rm", "-f", name).CombinedOutput()
	})

	chromeURL := fmt.Sprintf("http://localhost:%d", port)
	waitForHTTP(t, chromeURL+"/json/version", 60*time.Second)

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), chromeURL)
	ctx, ctxCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(t.Logf))
	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	t.Cleanup(func() {
		timeoutCancel()
		ctxCancel()
		allocCancel()
	})
	return ctx
}

// chromeURL rewrites an httptest URL so the browser in Docker can reach it.
func chromeURL(serverURL string) string {
	host := "localhost"
	if runtime.GOOS != "linux" {
		host = "host.docker.internal"
	}
	u := strings.Replace(serverURL, "127.0.0.1", host, 1)
	return strings.Replace(u, "[::1]", host, 1)
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitForHTTP(t *testing.T, url string, timeout time.Duration) {
	t.Helper()

	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("%s not ready within %v", url, timeout)
}
