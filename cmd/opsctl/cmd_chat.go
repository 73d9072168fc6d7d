package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumohq/ops-assistant/pkg/sse"
)

var chatMessage string

var chatCmd = &cobra.Command{
	Use:   "chat [conversation-id]",
	Short: "Chat with the assistant, streaming events as they happen",
	Long: `Run chat turns against the server's streaming endpoint.

Without a conversation id a fresh conversation is created. With
--message a single turn runs and the command exits; otherwise an
interactive prompt reads one message per line until EOF or "exit".

Examples:
  opsctl chat --message "Which entity moved the most today?"
  opsctl chat conv_1a2b3c`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
}

func runChat(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var convID string
	if len(args) == 1 {
		convID = args[0]
	} else {
		summary, err := client.createConversation()
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		convID = summary.ID
		fmt.Printf("conversation: %s\n", convID)
	}

	if chatMessage != "" {
		return streamTurn(client, convID, chatMessage)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := streamTurn(client, convID, line); err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
		}
	}
}

// streamTurn sends one message and renders the event stream until the
// terminal done or error event arrives.
func streamTurn(client *apiClient, convID, message string) error {
	req, err := client.newRequest(http.MethodPost, "/conversations/"+convID+"/chat/stream",
		map[string]string{"message": message})
	if err != nil {
		return err
	}
	resp, err := client.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	var parser sse.Parser
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, event := range parser.Feed(buf[:n]) {
				renderEvent(event)
			}
		}
		if readErr != nil {
			fmt.Println()
			return nil
		}
	}
}

// streamPayload mirrors the server's event data shape.
type streamPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Content string `json:"content"`
	Query   string `json:"query"`
	Success *bool  `json:"success"`
	Result  string `json:"result"`
}

func renderEvent(event sse.Event) {
	var payload streamPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		// Malformed blocks are skipped silently per the protocol.
		return
	}

	switch payload.Type {
	case "status":
		fmt.Printf("[%s]\n", payload.Message)
	case "reasoning_token":
		fmt.Print(payload.Content)
	case "reasoning":
		// Full accumulated reasoning; the tokens already printed it.
		fmt.Println()
	case "tool_call":
		fmt.Printf("sql> %s\n", payload.Query)
	case "tool_result":
		if payload.Success != nil && *payload.Success {
			fmt.Println("sql> ok")
		} else {
			fmt.Printf("sql> error: %s\n", payload.Result)
		}
	case "token":
		fmt.Print(payload.Content)
	case "done":
		fmt.Println()
	case "error":
		fmt.Printf("\nerror: %s\n", payload.Message)
	}
}
