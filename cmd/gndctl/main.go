package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/groundctl/gnd/internal/session"
	"github.com/groundctl/gnd/internal/tui/client"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := client.New(session.SocketPath(sessionName))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, sessionName, *jsonFlag)
	case "surveys":
		cmdSurveys(ctx, c, *jsonFlag)
	case "survey":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: gndctl survey <id>")
			os.Exit(1)
		}
		cmdSurvey(ctx, c, args[1], *jsonFlag)
	case "activate":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: gndctl activate <survey-id>")
			os.Exit(1)
		}
		cmdActivate(ctx, c, args[1])
	case "remove":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: gndctl remove <survey-id>")
			os.Exit(1)
		}
		cmdRemove(ctx, c, args[1])
	case "terms":
		cmdTerms(ctx, c, *jsonFlag)
	case "signout":
		cmdSignOut(ctx, c)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: gndctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status               Show session status")
	fmt.Fprintln(os.Stderr, "  surveys              List visible surveys")
	fmt.Fprintln(os.Stderr, "  survey <id>          Show offline detail of a survey")
	fmt.Fprintln(os.Stderr, "  activate <id>        Download a survey and make it active")
	fmt.Fprintln(os.Stderr, "  remove <id>          Delete a survey's offline copy")
	fmt.Fprintln(os.Stderr, "  terms                Show terms of service")
	fmt.Fprintln(os.Stderr, "  signout              Sign out of the session")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdStatus(ctx context.Context, c *client.Client, sessionName string, jsonOut bool) {
	resp, err := c.Status(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Session: %s\n", sessionName)
	fmt.Printf("State:   %s\n", resp.State)
	if resp.Email != "" {
		fmt.Printf("User:    %s\n", resp.Email)
	}
	if resp.ActiveSurvey != "" {
		fmt.Printf("Active:  %s\n", resp.ActiveSurvey)
	}
	fmt.Printf("Surveys: %d (%d offline)\n", resp.SurveyCount, resp.OfflineCount)
}

func cmdSurveys(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.Surveys(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Status: %s\n", resp.Status)
	if resp.Error != "" {
		fmt.Printf("Error:  %s\n", resp.Error)
	}
	for _, item := range resp.Items {
		marker := " "
		if item.AvailableOffline {
			marker = "*"
		}
		fmt.Printf("%s %-24s %s\n", marker, item.ID, item.Title)
	}
}

func cmdSurvey(ctx context.Context, c *client.Client, id string, jsonOut bool) {
	resp, err := c.Survey(ctx, id)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Survey:      %s\n", resp.Title)
	if resp.Description != "" {
		fmt.Printf("Description: %s\n", resp.Description)
	}
	fmt.Printf("Offline:     %v\n", resp.AvailableOffline)
	fmt.Printf("Sites:       %d\n", resp.LOICount)
	fmt.Printf("Submissions: %d\n", resp.SubmissionCount)
	for _, job := range resp.Jobs {
		fmt.Printf("  job %-20s %s\n", job.ID, job.Name)
	}
}

func cmdActivate(ctx context.Context, c *client.Client, id string) {
	if err := c.Activate(ctx, id); err != nil {
		fatal(err)
	}
	fmt.Printf("Survey %s activated and available offline.\n", id)
}

func cmdRemove(ctx context.Context, c *client.Client, id string) {
	if err := c.RemoveOffline(ctx, id); err != nil {
		fatal(err)
	}
	fmt.Printf("Removing offline copy of %s.\n", id)
}

func cmdTerms(ctx context.Context, c *client.Client, jsonOut bool) {
	resp, err := c.Terms(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Println(resp.Text)
}

func cmdSignOut(ctx context.Context, c *client.Client) {
	if err := c.SignOut(ctx); err != nil {
		fatal(err)
	}
	fmt.Println("Signed out.")
}

func outputJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(data))
}
