package catalog

import "omnisearch/internal/domain"

// GoogleTokenEnv holds the OAuth token for the non-simulated Google tools.
const GoogleTokenEnv = "OMNISEARCH_GOOGLE_TOKEN"

func simulatedTool(id, name, category string) domain.ToolSpec {
	return domain.ToolSpec{
		Tool:        domain.Tool{ID: id, Name: name, Category: category, Simulated: true},
		Latency:     domain.LatencyRange{MinMs: domain.DefaultLatencyMinMs, MaxMs: domain.DefaultLatencyMaxMs},
		FailureRate: 0.05,
	}
}

func googleTool(id, name, category string) domain.ToolSpec {
	spec := simulatedTool(id, name, category)
	spec.Simulated = false
	spec.FailureRate = 0
	spec.CredentialEnv = GoogleTokenEnv
	return spec
}

// DefaultTools returns the built-in catalog used when a config lists no tools.
func DefaultTools() []domain.ToolSpec {
	return []domain.ToolSpec{
		simulatedTool("slack", "Slack", "communication"),
		simulatedTool("teams", "Microsoft Teams", "communication"),
		googleTool("gmail", "Gmail", "email"),
		simulatedTool("outlook", "Outlook", "email"),
		googleTool("calendar", "Google Calendar", "calendar"),
		simulatedTool("jira", "Jira", "project-management"),
		simulatedTool("linear", "Linear", "project-management"),
		simulatedTool("github", "GitHub", "development"),
		simulatedTool("gitlab", "GitLab", "development"),
		simulatedTool("confluence", "Confluence", "documentation"),
		simulatedTool("notion", "Notion", "documentation"),
		simulatedTool("drive", "Google Drive", "storage"),
	}
}

// Default returns the built-in catalog with default runtime settings.
func Default() domain.Catalog {
	return domain.Catalog{Tools: DefaultTools(), Runtime: domain.DefaultRuntimeConfig()}
}
