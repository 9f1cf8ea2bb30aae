package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"socialchat/internal/chatwire"
	"socialchat/internal/client"
	"socialchat/internal/config"
)

func main() {
	username := flag.String("user", "", "username to log in with")
	password := flag.String("pass", "", "password to log in with")
	flag.Parse()

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	token := os.Getenv("SOCIALCHAT_TOKEN")
	if token == "" {
		if *username == "" || *password == "" {
			log.Fatal("set SOCIALCHAT_TOKEN or pass -user and -pass")
		}
		token, err = login(cfg.Client.APIBaseURL, *username, *password)
		if err != nil {
			log.Fatalf("login: %v", err)
		}
	}

	api := client.NewRESTClient(cfg.Client.APIBaseURL, token)
	transport := client.NewWebSocketTransport(cfg.Client.ChatWSURL, token, client.ReconnectPolicy{
		Base:     cfg.Client.ReconnectBaseDelay,
		Max:      cfg.Client.ReconnectMaxDelay,
		MaxTries: cfg.Client.ReconnectMaxTries,
	})
	store := client.NewStore(api, transport, 20)

	ctx := context.Background()
	if err := store.LoadCurrentUser(ctx); err != nil {
		log.Fatalf("loading current user: %v", err)
	}
	if err := store.Connect(ctx); err != nil {
		log.Fatalf("connecting: %v", err)
	}
	defer store.Close()

	if err := store.LoadConversations(ctx); err != nil {
		log.Printf("loading conversations: %v", err)
	}

	printConversations(store)
	fmt.Println(`commands: /list, /open <id>, /del <msgid>, /quit; anything else is sent`)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			printMessages(store)

		case line == "/quit":
			return

		case line == "/list":
			if err := store.LoadConversations(ctx); err != nil {
				fmt.Println("error:", err)
			}
			printConversations(store)

		case strings.HasPrefix(line, "/open "):
			id, err := strconv.ParseUint(strings.TrimPrefix(line, "/open "), 10, 32)
			if err != nil {
				fmt.Println("usage: /open <conversation id>")
				continue
			}
			if err := store.SetActiveConversation(ctx, uint(id)); err != nil {
				fmt.Println("error:", err)
				continue
			}
			printMessages(store)

		case strings.HasPrefix(line, "/del "):
			id, err := strconv.ParseUint(strings.TrimPrefix(line, "/del "), 10, 32)
			if err != nil {
				fmt.Println("usage: /del <message id>")
				continue
			}
			if err := store.DeleteMessage(ctx, uint(id)); err != nil {
				fmt.Println("error:", err)
			}

		default:
			store.SendTypingIndicator(false)
			if err := store.SendMessage(line); err != nil {
				fmt.Println("error:", err)
			}
		}
	}
}

// login exchanges credentials for a bearer token using the public login
// endpoint.
func login(baseURL, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Post(baseURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", err
	}
	if !env.Success {
		return "", fmt.Errorf("login rejected: %s", env.Error)
	}
	return env.Data.Token, nil
}

func printConversations(store *client.Store) {
	snap := store.Snapshot()
	if snap.Error != "" {
		fmt.Println("error:", snap.Error)
		store.ClearError()
	}
	fmt.Printf("conversations (%d):\n", len(snap.Conversations))
	for _, c := range snap.Conversations {
		fmt.Printf("  [%d] %s%s\n", c.ID, counterpartName(c, snap.CurrentUser), preview(c.LastMessage))
	}
}

func printMessages(store *client.Store) {
	snap := store.Snapshot()
	if snap.Error != "" {
		fmt.Println("error:", snap.Error)
		store.ClearError()
	}
	for _, m := range snap.Messages {
		sender := fmt.Sprintf("user %d", m.SenderID)
		if m.Sender != nil {
			sender = m.Sender.Username
		}
		fmt.Printf("  #%d %s %s: %s\n", m.ID, m.CreatedAt.Format("15:04:05"), sender, m.Content)
	}
	for _, t := range snap.TypingIndicators {
		if t.IsTyping && t.ConversationID == snap.ActiveConversationID {
			fmt.Printf("  %s is typing...\n", t.Username)
		}
	}
}

func counterpartName(c chatwire.Conversation, me *chatwire.User) string {
	if me != nil {
		for _, p := range c.Participants {
			if p.UserID != me.ID {
				return p.User.Username
			}
		}
	}
	return "(just you)"
}

func preview(m *chatwire.Message) string {
	if m == nil {
		return ""
	}
	content := m.Content
	if len(content) > 40 {
		content = content[:40] + "..."
	}
	return " - " + content
}
