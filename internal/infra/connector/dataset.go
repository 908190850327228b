package connector

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"time"

	"omnisearch/internal/domain"
)

// Kind selects the shape of records a connector produces.
type Kind string

const (
	KindMessage     Kind = "message"
	KindIssue       Kind = "issue"
	KindPullRequest Kind = "pull_request"
	KindEmail       Kind = "email"
	KindEvent       Kind = "event"
	KindDocument    Kind = "document"
)

// Every dataset cycles through all topics so any tier contains each of them.
var topics = []string{
	"budget",
	"roadmap",
	"incident",
	"onboarding",
	"release",
	"hiring",
	"security review",
	"quarterly planning",
	"customer feedback",
	"migration",
}

var people = []string{
	"Ada Park",
	"Bruno Silva",
	"Chen Wei",
	"Dana Okafor",
	"Emil Novak",
	"Farah Haddad",
	"Goran Petrov",
}

var teams = []string{"platform", "growth", "infra", "finance", "design"}

type record struct {
	title    string
	body     string
	url      string
	metadata map[string]any
}

type generator func(toolID string, i int, topic string, rng *rand.Rand) record

var generators = map[Kind]generator{
	KindMessage:     messageRecord,
	KindIssue:       issueRecord,
	KindPullRequest: pullRequestRecord,
	KindEmail:       emailRecord,
	KindEvent:       eventRecord,
	KindDocument:    documentRecord,
}

// generateDataset builds a deterministic dataset for toolID anchored at now.
func generateDataset(toolID string, kind Kind, volume domain.DataVolume, now time.Time) []domain.SearchResult {
	gen, ok := generators[kind]
	if !ok {
		kind = KindDocument
		gen = documentRecord
	}
	seed := seedFor(toolID)
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	count := volume.ItemCount()
	out := make([]domain.SearchResult, 0, count)
	for i := 0; i < count; i++ {
		topic := topics[i%len(topics)]
		rec := gen(toolID, i, topic, rng)
		out = append(out, domain.SearchResult{
			ID:             fmt.Sprintf("%s-%s-%03d", toolID, kind, i),
			Title:          rec.title,
			Body:           rec.body,
			ToolID:         toolID,
			ContentType:    string(kind),
			URL:            rec.url,
			Timestamp:      now.Add(-time.Duration(i*6+rng.IntN(6)) * time.Hour),
			Author:         pick(rng, people),
			RelevanceScore: float64(40 + rng.IntN(60)),
			Metadata:       rec.metadata,
		})
	}
	return out
}

func seedFor(toolID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(toolID))
	return h.Sum64()
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}

func messageRecord(toolID string, i int, topic string, rng *rand.Rand) record {
	channel := "#" + pick(rng, teams)
	return record{
		title: fmt.Sprintf("Thread in %s about %s", channel, topic),
		body:  fmt.Sprintf("Quick sync on the %s: can we close this out before Friday?", topic),
		url:   fmt.Sprintf("https://%s.example.com/archives/%s/p%06d", toolID, strings.TrimPrefix(channel, "#"), i),
		metadata: map[string]any{
			"channel":   channel,
			"reactions": rng.IntN(12),
		},
	}
}

func issueRecord(toolID string, i int, topic string, rng *rand.Rand) record {
	project := strings.ToUpper(pick(rng, teams)[:3])
	key := fmt.Sprintf("%s-%d", project, 100+i)
	statuses := []string{"open", "in progress", "in review", "done"}
	return record{
		title: fmt.Sprintf("%s: follow up on %s", key, topic),
		body:  fmt.Sprintf("Track the remaining work for the %s and link related tickets.", topic),
		url:   fmt.Sprintf("https://%s.example.com/browse/%s", toolID, key),
		metadata: map[string]any{
			"project":  project,
			"assignee": pick(rng, people),
			"status":   pick(rng, statuses),
		},
	}
}

func pullRequestRecord(toolID string, i int, topic string, rng *rand.Rand) record {
	repo := pick(rng, teams) + "-service"
	states := []string{"open", "merged", "closed"}
	return record{
		title: fmt.Sprintf("#%d Update %s handling", 200+i, topic),
		body:  fmt.Sprintf("This change adjusts the %s flow and adds tests.", topic),
		url:   fmt.Sprintf("https://%s.example.com/acme/%s/pull/%d", toolID, repo, 200+i),
		metadata: map[string]any{
			"repository": repo,
			"state":      pick(rng, states),
		},
	}
}

func emailRecord(toolID string, i int, topic string, rng *rand.Rand) record {
	from := pick(rng, people)
	return record{
		title: fmt.Sprintf("Re: %s", topic),
		body:  fmt.Sprintf("Hi all, attaching the latest notes on the %s. Let me know if anything is missing.", topic),
		url:   fmt.Sprintf("https://%s.example.com/mail/%d", toolID, 5000+i),
		metadata: map[string]any{
			"from":   from,
			"labels": []string{"inbox", pick(rng, teams)},
		},
	}
}

func eventRecord(toolID string, i int, topic string, rng *rand.Rand) record {
	return record{
		title: fmt.Sprintf("Meeting: %s", topic),
		body:  fmt.Sprintf("Agenda: review the %s and agree on owners.", topic),
		url:   fmt.Sprintf("https://%s.example.com/event/%d", toolID, 7000+i),
		metadata: map[string]any{
			"attendees":       2 + rng.IntN(8),
			"durationMinutes": 30 * (1 + rng.IntN(3)),
		},
	}
}

func documentRecord(toolID string, i int, topic string, rng *rand.Rand) record {
	space := pick(rng, teams)
	return record{
		title: fmt.Sprintf("%s notes (%s)", titleCase(topic), space),
		body:  fmt.Sprintf("Working document describing the %s for the %s team.", topic, space),
		url:   fmt.Sprintf("https://%s.example.com/docs/%s/%d", toolID, space, 900+i),
		metadata: map[string]any{
			"space":      space,
			"lastEditor": pick(rng, people),
		},
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
