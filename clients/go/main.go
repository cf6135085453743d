// Relay CLI - Command line client for the relay chat service
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/relaykit/relay/clients/go/relay"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("RELAY_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := relay.NewClient(baseURL)
	client.Token = os.Getenv("RELAY_TOKEN")
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "rooms":
		resp, err := client.ListRooms(50, 0)
		exitOnError(err)
		for _, room := range resp.Rooms {
			fmt.Printf("  %s  %s (%d msgs, %d online)\n", room.ID, room.Name, room.MessageCount, room.OnlineCount)
		}

	case "read":
		roomID := relay.GeneralRoom
		if len(os.Args) > 2 {
			roomID = os.Args[2]
		}
		resp, err := client.GetMessages(roomID, 50)
		exitOnError(err)
		for _, msg := range resp.Messages {
			printMessage(msg.Timestamp, msg.Username, msg.Text)
		}

	case "register":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: relay register <username> <password>")
			os.Exit(1)
		}
		resp, err := client.Register(os.Args[2], os.Args[3])
		exitOnError(err)
		fmt.Printf("Registered as: %s (%s)\n", resp.Username, resp.ID)

	case "login":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: relay login <username> <password>")
			os.Exit(1)
		}
		resp, err := client.Login(os.Args[2], os.Args[3])
		exitOnError(err)
		fmt.Printf("export RELAY_TOKEN=%s\n", resp.Token)

	case "who":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: relay who <user_id>")
			os.Exit(1)
		}
		resp, err := client.GetUser(os.Args[2])
		exitOnError(err)
		printJSON(resp)

	case "chat":
		roomID := relay.GeneralRoom
		if len(os.Args) > 2 {
			roomID = os.Args[2]
		}
		chat(client, roomID)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

// chat joins a room and relays between stdin and the event stream.
func chat(client *relay.Client, roomID string) {
	session, err := client.Connect()
	exitOnError(err)
	defer session.Close()

	exitOnError(session.Join(roomID))

	go func() {
		for {
			ev, err := session.Next()
			if err != nil {
				fmt.Fprintln(os.Stderr, "connection closed:", err)
				os.Exit(1)
			}
			switch ev.Type {
			case "load_messages":
				for _, msg := range ev.Messages {
					printMessage(msg.Timestamp, msg.Username, msg.Text)
				}
			case "receive_message":
				printMessage(ev.Timestamp, ev.Username, ev.Text)
			case "user_joined":
				fmt.Printf("* %s joined (%d online)\n", ev.Username, len(ev.Users))
			case "user_left":
				fmt.Printf("* %s left (%d online)\n", ev.Username, len(ev.Users))
			case "error":
				fmt.Fprintln(os.Stderr, "server error:", ev.Message)
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" {
			return
		}
		if err := session.Send(roomID, text); err != nil {
			fmt.Fprintln(os.Stderr, "send failed:", err)
			return
		}
	}
}

func printMessage(ts int64, username, text string) {
	stamp := time.UnixMilli(ts).Format("2006-01-02 15:04:05")
	fmt.Printf("[%s] %s: %s\n", stamp, username, text)
}

func usage() {
	fmt.Println(`Relay CLI - room-scoped chat client

Usage: relay <command> [options]

Commands:
  register <username> <password>  Create an account
  login <username> <password>     Print a session token export line
  chat [room]                     Join a room and chat interactively
  read [room]                     Read recent messages from a room
  rooms                           List rooms
  who <user_id>                   Get a user profile
  health                          Check server health

Environment:
  RELAY_URL     Server URL (default: http://localhost:8080)
  RELAY_TOKEN   Session token from 'relay login'`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
