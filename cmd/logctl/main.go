package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"activity-logs/internal/client"
)

const usage = `Usage: logctl <command> [args]

Commands:
  generate <date>            submit a generation task (date is YYYY-MM-DD)
  status <taskId>            print the status of a task
  wait <taskId>              poll until the task completes or fails
  view <date>                print the latest log for a date
  download <taskId> [file]   save the log of a completed task
  tasks [date]               list known tasks

The server address is read from LOGS_API_URL (default http://localhost:8080).`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	baseURL := os.Getenv("LOGS_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	c := client.NewClient(baseURL)
	ctx := context.Background()

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "generate":
		requireArgs(args, 1)
		task, err := c.Generate(ctx, args[0])
		if err != nil {
			log.Fatalf("Failed to submit: %v", err)
		}
		fmt.Printf("%s\t%s\t%s\n", task.TaskID, task.Date, task.Status)

	case "status":
		requireArgs(args, 1)
		status, err := c.Status(ctx, args[0])
		if err != nil {
			log.Fatalf("Failed to get status: %v", err)
		}
		printStatus(status.TaskID, status.Date, status.Status, status.ErrorMessage)

	case "wait":
		requireArgs(args, 1)
		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		status, err := c.Wait(waitCtx, args[0], time.Second)
		if err != nil {
			log.Fatalf("Failed waiting for task: %v", err)
		}
		printStatus(status.TaskID, status.Date, status.Status, status.ErrorMessage)
		if status.Status == "FAILED" {
			os.Exit(2)
		}

	case "view":
		requireArgs(args, 1)
		payload, err := c.View(ctx, args[0])
		if err != nil {
			log.Fatalf("Failed to view log: %v", err)
		}
		os.Stdout.Write(payload)

	case "download":
		requireArgs(args, 1)
		payload, err := c.Download(ctx, args[0])
		if err != nil {
			log.Fatalf("Failed to download log: %v", err)
		}
		if len(args) < 2 {
			os.Stdout.Write(payload)
			return
		}
		if err := os.WriteFile(args[1], payload, 0644); err != nil {
			log.Fatalf("Failed to write %s: %v", args[1], err)
		}
		fmt.Printf("Saved %d bytes to %s\n", len(payload), args[1])

	case "tasks":
		date := ""
		if len(args) > 0 {
			date = args[0]
		}
		tasks, err := c.ListTasks(ctx, date, "")
		if err != nil {
			log.Fatalf("Failed to list tasks: %v", err)
		}
		for _, task := range tasks {
			printStatus(task.TaskID, task.Date, task.Status, task.ErrorMessage)
		}

	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func requireArgs(args []string, n int) {
	if len(args) < n {
		fmt.Println(usage)
		os.Exit(1)
	}
}

func printStatus(taskID, date, status, errorMessage string) {
	if errorMessage != "" {
		fmt.Printf("%s\t%s\t%s\t%s\n", taskID, date, status, errorMessage)
		return
	}
	fmt.Printf("%s\t%s\t%s\n", taskID, date, status)
}
