package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/session"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Global flags
	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "match":
		matchCmd(apiURL, args)
	case "bot":
		botCmd(apiURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Match Simulator - Development tool for exercising game rooms

USAGE:
  simulator <command> [options]

COMMANDS:
  match     Register two bots and let them play a full match in a room
  bot       Register one bot that joins a room and plays against you
  help      Show this help message

ENVIRONMENT:
  API_URL   Backend API URL (default: http://localhost:8080)

EXAMPLES:
  # Two bots play each other in a fresh room
  simulator match

  # Open room "lobby-1" in your browser, then let a bot take the second seat
  simulator bot --room=lobby-1 --think=2s`)
}

func matchCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	room := fs.String("room", fmt.Sprintf("sim-%d", time.Now().Unix()%100000), "Room id")
	think := fs.Duration("think", 300*time.Millisecond, "Delay before each bot action")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := NewAPIClient(apiURL)

	fmt.Println("=== Match Simulator ===")
	fmt.Println()

	names := []string{"BotOne", "BotTwo"}
	tokens := make([]string, len(names))
	for i, name := range names {
		fmt.Printf("Registering %s... ", name)
		user, token, err := client.RegisterUser(name)
		if err != nil {
			fmt.Printf("FAILED\n  Error: %v\n", err)
			os.Exit(1)
		}
		names[i], tokens[i] = user.DisplayName, token
		fmt.Printf("OK (user: %s)\n", user.DisplayName)
	}

	fmt.Println()
	fmt.Printf("Playing in room %s\n", *room)

	var (
		wg    sync.WaitGroup
		views = make([]session.View, len(names))
		errs  = make([]error, len(names))
	)
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bot := NewBot(names[i], client.WebSocketURL(tokens[i]), *think)
			views[i], errs[i] = bot.Play(ctx, *room)
		}(i)
		// Seat order follows join order
		time.Sleep(200 * time.Millisecond)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			fmt.Printf("%s stopped: %v\n", names[i], err)
			os.Exit(1)
		}
	}

	printResult(views[0])

	fmt.Println()
	for i, token := range tokens {
		stats, err := client.GetStats(token)
		if err != nil {
			fmt.Printf("Warning: failed to load stats for %s: %v\n", names[i], err)
			continue
		}
		fmt.Printf("%s: %d games, %d wins, %d losses\n", names[i], stats.TotalGames, stats.TotalWins, stats.TotalLosses)
	}
}

func botCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("bot", flag.ExitOnError)
	room := fs.String("room", "", "Room id to join (required)")
	think := fs.Duration("think", 2*time.Second, "Delay before each bot action")
	fs.Parse(args)

	if *room == "" {
		fmt.Println("Error: --room is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := NewAPIClient(apiURL)
	user, token, err := client.RegisterUser("Bot")
	if err != nil {
		fmt.Printf("Failed to register bot: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s joining room %s\n", user.DisplayName, *room)

	view, err := NewBot(user.DisplayName, client.WebSocketURL(token), *think).Play(ctx, *room)
	if err != nil {
		fmt.Printf("Bot stopped: %v\n", err)
		os.Exit(1)
	}
	printResult(view)
}

func printResult(v session.View) {
	fmt.Println()
	fmt.Println("=== Result ===")
	if v.Winner == domain.WinnerDraw {
		fmt.Println("Draw")
	} else {
		fmt.Printf("Winner: %s\n", v.WinnerName)
	}
	fmt.Printf("  %s (secret %s): %d guesses\n", v.P1.Name, v.P1.Secret, len(v.P1.Moves))
	fmt.Printf("  %s (secret %s): %d guesses\n", v.P2.Name, v.P2.Secret, len(v.P2.Moves))
}
