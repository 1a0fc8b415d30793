package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/raine/dermadict/internal/viewer"
)

const defaultProxyURL = "http://localhost:8080"

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintf(stderr, "Usage: %s <image-path> [proxy-url]\n", filepath.Base(args[0]))
		fmt.Fprintf(stderr, "\nDefault proxy URL: %s\n", defaultProxyURL)
		return 1
	}

	imagePath := args[1]
	proxyURL := defaultProxyURL
	if len(args) >= 3 {
		proxyURL = args[2]
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read image: %v\n", err)
		return 1
	}

	img, err := viewer.DecodeImage(getMimeType(imagePath), data)
	if err != nil {
		fmt.Fprintln(stderr, "Please upload an image file")
		return 1
	}

	session := viewer.NewSession()
	if err := session.Select(img); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	result, err := session.Analyze(ctx, viewer.NewClient(proxyURL))
	if err != nil {
		var apiErr *viewer.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintf(stderr, "%s (%s)\n", viewer.FailureNotice, apiErr.Message)
		} else {
			fmt.Fprintf(stderr, "%s (%v)\n", viewer.FailureNotice, err)
		}
		return 1
	}

	fmt.Fprintln(stdout, viewer.Render(result))
	return 0
}

// getMimeType guesses the declared type from the extension. Unknown
// extensions return "" so the content decides.
func getMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".txt":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}
