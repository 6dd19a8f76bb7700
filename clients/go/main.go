// Orderdesk CLI - command line chat client for orderdesk.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/orderdesk/orderdesk/clients/go/orderdesk"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: orderdesk-chat <username> <password> [order-id]")
		os.Exit(1)
	}

	baseURL := os.Getenv("ORDERDESK_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := orderdesk.NewClient(baseURL)
	if err := client.Login(os.Args[1], os.Args[2]); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}
	if err := client.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	var orderID int64
	if len(os.Args) > 3 {
		id, err := strconv.ParseInt(os.Args[3], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad order id: %v\n", err)
			os.Exit(1)
		}
		orderID = id
		if err := client.JoinOrder(orderID); err != nil {
			fmt.Fprintf(os.Stderr, "join: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("joined order %d, type to chat\n", orderID)
	} else {
		fmt.Println("connected to support chat, type to chat")
	}

	go func() {
		for {
			ev, err := client.Next()
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nconnection lost: %v\n", err)
				os.Exit(1)
			}
			ts := ev.Data.CreatedAt.Format("15:04:05")
			fmt.Printf("[%s] %s: %s\n", ts, ev.Data.Direction, ev.Data.Text)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var err error
		if orderID > 0 {
			err = client.SendOrderMessage(orderID, text, "")
		} else {
			err = client.SendSupportMessage(text, "")
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			return
		}
	}
}
