// seed_items.go — standalone script to parse a ROADMAP.md and seed work items
// via the governor API.
//
// Usage:
//
//	go run scripts/seed_items.go -roadmap /path/to/ROADMAP.md -api http://localhost:8700 -actor system
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
)

type workItem struct {
	Title      string                      `json:"title"`
	Category   string                      `json:"category,omitempty"`
	Checklists map[string][]checklistEntry `json:"checklists,omitempty"`
	Metadata   map[string]interface{}      `json:"metadata,omitempty"`
}

type checklistEntry struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Sections that describe context rather than work.
var skipSections = map[string]bool{
	"overview":   true,
	"background": true,
	"glossary":   true,
	"done":       true,
}

func main() {
	roadmapPath := flag.String("roadmap", "ROADMAP.md", "path to ROADMAP.md file")
	apiURL := flag.String("api", "http://localhost:8700", "governor API base URL")
	actorID := flag.String("actor", "system", "X-Actor-ID header value")
	dryRun := flag.Bool("dry-run", false, "print items without posting")
	flag.Parse()

	f, err := os.Open(*roadmapPath)
	if err != nil {
		log.Fatalf("open roadmap: %v", err)
	}
	defer f.Close()

	var items []workItem
	var currentSection string
	var skipCurrent bool
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "# ") {
			header := strings.TrimLeft(line, "# ")
			currentSection = strings.ToLower(strings.TrimSpace(header))

			skipCurrent = false
			for skip := range skipSections {
				if strings.Contains(currentSection, skip) {
					skipCurrent = true
					break
				}
			}
			continue
		}

		if skipCurrent {
			continue
		}

		// Top-level bullets become work items; indented checkbox bullets
		// become LEAD-phase checklist entries on the preceding item.
		if strings.HasPrefix(line, "- ") {
			title := strings.TrimSpace(strings.TrimPrefix(line, "- "))
			if title == "" {
				continue
			}
			items = append(items, workItem{
				Title:    title,
				Category: deriveCategory(currentSection),
				Metadata: map[string]interface{}{"source": "roadmap-seed"},
			})
			continue
		}

		trimmed := strings.TrimSpace(line)
		if len(items) > 0 && strings.HasPrefix(trimmed, "- [") && strings.HasPrefix(line, "  ") {
			done := strings.HasPrefix(trimmed, "- [x]") || strings.HasPrefix(trimmed, "- [X]")
			text := strings.TrimPrefix(trimmed, "- [x] ")
			text = strings.TrimPrefix(text, "- [X] ")
			text = strings.TrimPrefix(text, "- [ ] ")

			last := &items[len(items)-1]
			if last.Checklists == nil {
				last.Checklists = make(map[string][]checklistEntry)
			}
			last.Checklists["LEAD"] = append(last.Checklists["LEAD"], checklistEntry{Text: text, Done: done})
		}
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("scan roadmap: %v", err)
	}

	log.Printf("parsed %d items from %s", len(items), *roadmapPath)

	if *dryRun {
		for i, item := range items {
			fmt.Printf("[%d] %s (category=%s, checklist=%d)\n",
				i+1, item.Title, item.Category, len(item.Checklists["LEAD"]))
		}
		return
	}

	client := &http.Client{}
	created, skipped := 0, 0
	for _, item := range items {
		body, _ := json.Marshal(item)
		req, err := http.NewRequest("POST", *apiURL+"/api/v1/items", bytes.NewReader(body))
		if err != nil {
			log.Printf("skip %q: %v", item.Title, err)
			skipped++
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Actor-ID", *actorID)

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("skip %q: %v", item.Title, err)
			skipped++
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			created++
		} else {
			log.Printf("skip %q: status %d", item.Title, resp.StatusCode)
			skipped++
		}
	}

	log.Printf("done: %d created, %d skipped", created, skipped)
}

func deriveCategory(section string) string {
	switch {
	case strings.Contains(section, "infra"):
		return "infrastructure"
	case strings.Contains(section, "platform"):
		return "platform"
	case strings.Contains(section, "product"):
		return "product"
	case strings.Contains(section, "security"):
		return "security"
	case strings.Contains(section, "api"):
		return "api"
	default:
		return section
	}
}
