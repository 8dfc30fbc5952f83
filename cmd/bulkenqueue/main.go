// Command bulkenqueue reads a newline-delimited list of Reddit threads and
// enqueues an ingest_thread task for each one. Each line is either a bare
// reddit ID (paired with -subreddit) or a "reddit_id,subreddit" /
// "reddit_id subreddit" pair; blank lines and lines starting with "#" are
// skipped.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	asynqadp "github.com/therealityreport/socializer/internal/adapter/queue/asynq"
	"github.com/therealityreport/socializer/internal/config"
)

type entry struct {
	redditID  string
	subreddit string
}

func parseEntries(r *bufio.Scanner, defaultSubreddit string) ([]entry, error) {
	var entries []entry
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		if len(fields) == 0 {
			continue
		}
		redditID := fields[0]
		subreddit := defaultSubreddit
		if len(fields) > 1 {
			subreddit = fields[1]
		}
		if subreddit == "" {
			return nil, fmt.Errorf("missing subreddit for thread %q: pass -subreddit or include it per line", redditID)
		}
		entries = append(entries, entry{redditID: redditID, subreddit: subreddit})
	}
	return entries, r.Err()
}

func main() {
	input := flag.String("input", "", "path to a file of thread IDs (one per line, or 'id,subreddit'); reads stdin when omitted")
	subreddit := flag.String("subreddit", "", "subreddit to use for lines that only contain a thread ID")
	dryRun := flag.Bool("dry-run", false, "print the tasks that would be enqueued without submitting them")
	flag.Parse()

	src := os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatalf("open input: %v", err)
		}
		defer f.Close()
		src = f
	}

	entries, err := parseEntries(bufio.NewScanner(src), *subreddit)
	if err != nil {
		log.Fatal(err)
	}
	if len(entries) == 0 {
		fmt.Println("no thread IDs found; supply -input or pipe data via stdin")
		return
	}

	if *dryRun {
		fmt.Println("dry run, the following tasks would be enqueued:")
		for _, e := range entries {
			fmt.Printf("- reddit_id=%s subreddit=%s task=ingest_thread\n", e.redditID, e.subreddit)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	queue, err := asynqadp.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("queue connect: %v", err)
	}
	defer queue.Close()

	ctx := context.Background()
	for _, e := range entries {
		taskID, err := queue.EnqueueIngestThread(ctx, e.redditID, e.subreddit)
		if err != nil {
			log.Printf("enqueue failed for %s: %v", e.redditID, err)
			continue
		}
		fmt.Printf("queued ingest_thread for %s on /r/%s (task=%s)\n", e.redditID, e.subreddit, taskID)
	}
}
