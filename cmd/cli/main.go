// Command cli is a minimal terminal chat client for a running GrowFrika
// server. Upload a leaf image to start a conversation, then ask follow-ups.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/AlvinLimo/GrowFrika/internal/client"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	token := flag.String("token", "", "session token from /api/users/login")
	convoID := flag.String("convo", "", "resume an existing conversation id")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "missing -token (log in via POST /api/users/login first)")
		os.Exit(1)
	}

	ctx := context.Background()
	session := client.NewSession(client.NewAPI(*baseURL, *token))

	if *convoID != "" {
		if err := session.Load(ctx, *convoID); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load conversation: %v\n", err)
			os.Exit(1)
		}
		render(session)
	} else {
		fmt.Println("No conversation yet. Use /upload <image path> to get a diagnosis.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/upload "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/upload "))
			newID, err := session.SubmitImage(ctx, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
				continue
			}
			fmt.Printf("-- conversation %s: %s --\n", newID, session.Title())
			render(session)
		default:
			if err := session.SubmitText(ctx, line); err != nil {
				fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
				continue
			}
			render(session)
		}
	}
}

func render(session *client.Session) {
	for _, entry := range session.Entries() {
		role := entry.Message.Role
		content := entry.Message.Content
		if entry.Failed {
			role = "error"
		}
		fmt.Printf("[%s] %s\n", role, content)
	}
}
