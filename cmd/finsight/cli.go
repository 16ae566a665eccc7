package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Corona-HomeLab/FinSight/internal/assistant"
	"github.com/Corona-HomeLab/FinSight/internal/registry"
)

const cliHelp = `Commands:
  /add       add a data source (interactive)
  /remove ID remove a data source
  /list      list configured sources
  /refresh   re-ingest every active source
  /history   show the chat history
  /help      show this help
  /exit      quit
Anything else is sent to the assistant as a question.`

// runCLI drives the assistant from stdin. Free text becomes a chat question;
// slash commands manage sources.
func runCLI(ctx context.Context, a *assistant.Assistant) error {
	fmt.Println("finsight interactive mode, /help for commands")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			answer, err := a.Chat(ctx, line)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println(answer)
			continue
		}

		cmd, arg := splitCommand(line)
		switch cmd {
		case "/exit", "/quit":
			return nil
		case "/help":
			fmt.Println(cliHelp)
		case "/list":
			printSources(a)
		case "/history":
			printHistory(a)
		case "/refresh":
			if err := a.Refresh(ctx); err != nil {
				fmt.Println("refresh finished with errors:", err)
				continue
			}
			fmt.Println("refresh complete")
		case "/remove":
			if arg == "" {
				fmt.Println("usage: /remove SOURCE_ID")
				continue
			}
			if err := a.RemoveSource(ctx, arg); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("removed", arg)
		case "/add":
			addSourceInteractive(ctx, a, scanner)
		default:
			fmt.Println("unknown command, /help for commands")
		}
	}
}

func splitCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	cmd := parts[0]
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}

func addSourceInteractive(ctx context.Context, a *assistant.Assistant, scanner *bufio.Scanner) {
	prompt := func(label string) string {
		fmt.Print(label)
		if !scanner.Scan() {
			return ""
		}
		return strings.TrimSpace(scanner.Text())
	}

	sourceID := prompt("source id: ")
	input := registry.AddInput{
		Name:        prompt("name: "),
		Endpoint:    prompt("endpoint url: "),
		Description: prompt("description: "),
		Namespace:   prompt("namespace (blank = source id): "),
		DataKey:     prompt("data key (blank = whole response): "),
		DataType:    prompt("data type (users/transactions/financial/general): "),
		Username:    prompt("username (blank if shared): "),
		UserID:      prompt("user id (blank if shared): "),
	}

	src, err := a.AddSource(ctx, sourceID, input)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("added %s (namespace %s, %d chunks)\n", src.SourceID, src.Namespace, len(src.DocumentIDs))
}

func printSources(a *assistant.Assistant) {
	sources := a.ListSources()
	if len(sources) == 0 {
		fmt.Println("no sources configured")
		return
	}
	for _, src := range sources {
		fmt.Printf("%s  %s  namespace=%s type=%s chunks=%d\n",
			src.SourceID, src.Endpoint, src.Namespace, src.DataType, len(src.DocumentIDs))
	}
}

func printHistory(a *assistant.Assistant) {
	turns := a.History()
	if len(turns) == 0 {
		fmt.Println("no chat history")
		return
	}
	for _, turn := range turns {
		fmt.Println("Q:", turn.Question)
		fmt.Println("A:", turn.Answer)
	}
}
