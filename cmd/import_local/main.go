package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"nuestra-historia/internal/config"
	"nuestra-historia/internal/database"
	"nuestra-historia/internal/memories"
	"nuestra-historia/internal/realtime"
	wire "nuestra-historia/pkg/models"

	"github.com/alecthomas/kong"
)

var (
	cli struct {
		File       string `arg:"" help:"JSON export of the browser's local \"memories\" list" type:"existingfile"`
		Collection string `help:"Collection to import into (defaults to COLLECTION)" default:""`
		DryRun     bool   `help:"Parse and report without writing"`
	}
)

func main() {
	_ = kong.Parse(&cli, kong.Description("Import memories saved in browser local storage."))
	cfg := config.LoadConfig()

	name := cli.Collection
	if name == "" {
		name = cfg.Collection
	}

	data, err := os.ReadFile(cli.File)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", cli.File, err)
	}

	var entries []wire.LocalMemory
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Fatalf("Failed to parse %s: %v", cli.File, err)
	}
	log.Printf("Read %d local memories", len(entries))

	if cli.DryRun {
		records, skipped := convert(entries)
		log.Printf("Would import %d memories into %q, skip %d", len(records), name, skipped)
		return
	}

	db := database.InitGorm(cfg)
	coll := realtime.NewGormCollection(db)
	defer coll.Close()

	imported, skipped, err := importLocal(context.Background(), coll, name, entries)
	if err != nil {
		log.Fatalf("Import stopped after %d memories: %v", imported, err)
	}
	log.Printf("Imported %d memories into %q, skipped %d", imported, name, skipped)
}

// convert maps local entries to records. Entries without a URL are skipped.
func convert(entries []wire.LocalMemory) ([]wire.MemoryRecord, int) {
	records := make([]wire.MemoryRecord, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		url := strings.TrimSpace(e.ImageURL)
		if url == "" {
			skipped++
			continue
		}

		ts := e.Timestamp
		if ts == 0 {
			// local ids were creation times in ms
			ts = e.ID
		}

		title := strings.TrimSpace(e.Title)
		if title == "" {
			title = memories.DefaultTitle
		}

		date := strings.TrimSpace(e.Date)
		if date == "" && ts > 0 {
			date = time.UnixMilli(ts).UTC().Format(memories.DateLayout)
		}

		records = append(records, wire.MemoryRecord{
			URL:       url,
			Type:      wire.TypeImage,
			Title:     title,
			Date:      date,
			Timestamp: ts,
		})
	}
	return records, skipped
}

func importLocal(ctx context.Context, coll realtime.Collection, name string, entries []wire.LocalMemory) (int, int, error) {
	records, skipped := convert(entries)
	for i, rec := range records {
		if _, err := coll.Push(ctx, name, rec); err != nil {
			return i, skipped, fmt.Errorf("push %q: %w", rec.Title, err)
		}
	}
	return len(records), skipped, nil
}
