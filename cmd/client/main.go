package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

type RefreshStatusResponse struct {
	TaskID       string `json:"task_id"`
	GuildID      string `json:"guild_id"`
	Status       string `json:"status"`
	Failure      string `json:"failure,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

func main() {
	var serverAddr string
	var pollInterval time.Duration
	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "Server address")
	flag.DurationVar(&pollInterval, "poll", 2*time.Second, "Task status poll interval")
	flag.Parse()

	guildIDs := flag.Args()
	if len(guildIDs) == 0 {
		log.Fatal("At least one guild ID is required. Usage: client [flags] <guild_id> <guild_id> ...")
	}

	client := resty.New().SetBaseURL(serverAddr)

	failed := false
	for _, guildID := range guildIDs {
		if err := refresh(client, guildID, pollInterval); err != nil {
			fmt.Printf("Гильдия %s: %v\n", guildID, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// refresh ставит обновление виджета в очередь сервера и ждет его завершения.
func refresh(client *resty.Client, guildID string, pollInterval time.Duration) error {
	var taskResp map[string]string
	resp, err := client.R().
		SetPathParam("guildID", guildID).
		SetResult(&taskResp).
		Post("/api/v1/widgets/{guildID}/refresh")
	if err != nil {
		return fmt.Errorf("не удалось отправить запрос: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("сервер вернул статус %d: %s", resp.StatusCode(), resp.String())
	}

	taskID := taskResp["task_id"]
	if taskID == "" {
		return fmt.Errorf("идентификатор задачи не найден в ответе")
	}
	fmt.Printf("Задача создана с идентификатором: %s\n", taskID)

	// Опрос о статусе задачи
	for {
		time.Sleep(pollInterval)

		var statusResp RefreshStatusResponse
		resp, err := client.R().
			SetPathParam("taskID", taskID).
			SetResult(&statusResp).
			Get("/api/v1/tasks/{taskID}")
		if err != nil {
			return fmt.Errorf("не удалось опросить статус задачи: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("сервер вернул статус: %d", resp.StatusCode())
		}

		fmt.Printf("Статус задачи: %s\n", statusResp.Status)

		switch statusResp.Status {
		case "done":
			result, err := client.R().
				SetPathParam("taskID", taskID).
				Get("/api/v1/tasks/{taskID}/result")
			if err != nil {
				return fmt.Errorf("не удалось получить результат: %w", err)
			}
			if result.StatusCode() != http.StatusOK {
				return fmt.Errorf("сервер вернул статус для результата: %d", result.StatusCode())
			}

			fmt.Printf("Снимок виджета (%d мс):\n", statusResp.DurationMS)
			fmt.Println(result.String())
			return nil
		case "failed":
			return fmt.Errorf("задача не выполнена (%s): %s", statusResp.Failure, statusResp.ErrorMessage)
		case "queued", "running":
			continue
		default:
			return fmt.Errorf("неизвестный статус задачи: %s", statusResp.Status)
		}
	}
}
