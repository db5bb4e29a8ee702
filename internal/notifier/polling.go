package notifier

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Command is a parsed chat command such as "/run k=5 horizon=6" or
// "/customer C042".
type Command struct {
	Name    string            // lower-case, with the leading slash
	Args    []string          // positional arguments
	Options map[string]string // key=value arguments
	ChatID  string
}

// ParseCommand parses a chat message into a command. Group chats address
// commands as /cmd@botname; the bot name is dropped. Text that does not
// start with a slash is not a command.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	cmd := Command{Name: strings.ToLower(name), Options: map[string]string{}}
	for _, f := range fields[1:] {
		if k, v, ok := strings.Cut(f, "="); ok && k != "" {
			cmd.Options[strings.ToLower(k)] = v
			continue
		}
		cmd.Args = append(cmd.Args, f)
	}
	return cmd, true
}

// CommandHandler answers one command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, cmd Command) Message

type update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type getUpdatesRequest struct {
	Offset         int      `json:"offset"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

const pollTimeout = 30 // seconds

// StartPolling long-polls for commands and replies in the chat they came
// from. Only the configured chat is served. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	client := &http.Client{Timeout: (pollTimeout + 5) * time.Second}
	if t.Client != nil {
		client.Transport = t.Client.Transport
	}

	offset := 0
	for {
		var updates []update
		err := t.call(ctx, client, "getUpdates", getUpdatesRequest{
			Offset: offset, Timeout: pollTimeout, AllowedUpdates: []string{"message"},
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("[INFO] Telegram polling stopped")
				return
			}
			log.Printf("[WARN] polling request failed: %v", err)
			if !sleepCtx(ctx, 5*time.Second) {
				log.Println("[INFO] Telegram polling stopped")
				return
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil {
				continue
			}
			chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
			if chatID != t.ChatID {
				log.Printf("[WARN] ignoring message from chat %s", chatID)
				continue
			}
			cmd, ok := ParseCommand(u.Message.Text)
			if !ok {
				continue
			}
			cmd.ChatID = chatID
			log.Printf("[INFO] received command: %s %v %v", cmd.Name, cmd.Args, cmd.Options)
			reply := handler(ctx, cmd)
			if reply.Text == "" {
				continue
			}
			if err := t.sendTo(ctx, chatID, reply); err != nil {
				log.Printf("[ERROR] send reply: %v", err)
			}
		}
	}
}
