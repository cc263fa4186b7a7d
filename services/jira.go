package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"worklog/database"
)

// JiraIssue is the subset of a JIRA issue the board cares about.
type JiraIssue struct {
	Key         string
	Summary     string
	Description string
	Priority    string
	Assignee    string
	DueDate     string
}

// JiraClient talks to the JIRA REST search API with basic auth.
type JiraClient struct {
	baseURL string
	email   string
	token   string
	http    *http.Client
}

func NewJiraClient(baseURL, email, token string) *JiraClient {
	return &JiraClient{
		baseURL: baseURL,
		email:   email,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type jiraSearchResponse struct {
	StartAt    int `json:"startAt"`
	MaxResults int `json:"maxResults"`
	Total      int `json:"total"`
	Issues     []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string `json:"summary"`
			Description string `json:"description"`
			DueDate     string `json:"duedate"`
			Priority    *struct {
				Name string `json:"name"`
			} `json:"priority"`
			Assignee *struct {
				EmailAddress string `json:"emailAddress"`
			} `json:"assignee"`
		} `json:"fields"`
	} `json:"issues"`
}

// SearchIssues runs a JQL query and returns all matching issues, following
// pagination.
func (c *JiraClient) SearchIssues(ctx context.Context, jql string) ([]JiraIssue, error) {
	var issues []JiraIssue
	startAt := 0

	for {
		page, err := c.searchPage(ctx, jql, startAt)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Issues {
			issue := JiraIssue{
				Key:         raw.Key,
				Summary:     raw.Fields.Summary,
				Description: raw.Fields.Description,
				DueDate:     raw.Fields.DueDate,
			}
			if raw.Fields.Priority != nil {
				issue.Priority = raw.Fields.Priority.Name
			}
			if raw.Fields.Assignee != nil {
				issue.Assignee = raw.Fields.Assignee.EmailAddress
			}
			issues = append(issues, issue)
		}

		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 {
			break
		}
	}
	return issues, nil
}

func (c *JiraClient) searchPage(ctx context.Context, jql string, startAt int) (*jiraSearchResponse, error) {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", "50")
	params.Set("fields", "summary,description,priority,assignee,duedate")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/rest/api/2/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query JIRA: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JIRA search returned %s", resp.Status)
	}

	var page jiraSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode JIRA response: %w", err)
	}
	return &page, nil
}

// jiraPriorities maps JIRA priority names onto board priorities.
var jiraPriorities = map[string]string{
	"Highest": database.PriorityUrgent,
	"High":    database.PriorityHigh,
	"Medium":  database.PriorityMedium,
	"Low":     database.PriorityLow,
	"Lowest":  database.PriorityLow,
}

// JiraSync ingests JIRA tickets into a board's inbox column.
type JiraSync struct {
	client      *JiraClient
	board       *BoardService
	tasks       *database.TaskStore
	jql         string
	projectID   string
	teamID      string
	inboxColumn string
	log         *zap.SugaredLogger
}

func NewJiraSync(client *JiraClient, board *BoardService, tasks *database.TaskStore,
	jql, projectID, teamID, inboxColumn string, log *zap.SugaredLogger) *JiraSync {
	return &JiraSync{
		client:      client,
		board:       board,
		tasks:       tasks,
		jql:         jql,
		projectID:   projectID,
		teamID:      teamID,
		inboxColumn: inboxColumn,
		log:         log,
	}
}

// Sync fetches matching tickets and creates a task for each one that has
// not been ingested yet. Returns the number of newly created tasks.
func (s *JiraSync) Sync(ctx context.Context) (int, error) {
	issues, err := s.client.SearchIssues(ctx, s.jql)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch JIRA issues: %w", err)
	}

	created := 0
	for _, issue := range issues {
		_, err := s.tasks.FindByJiraKey(ctx, s.projectID, s.teamID, issue.Key)
		if err == nil {
			continue // already ingested
		}
		if !errors.Is(err, database.ErrNotFound) {
			return created, err
		}

		key := issue.Key
		task := &database.Task{
			Title:         issue.Summary,
			Description:   issue.Description,
			ColumnID:      s.inboxColumn,
			Priority:      jiraPriorities[issue.Priority],
			AssignedTo:    issue.Assignee,
			DueDate:       issue.DueDate,
			Scope:         database.ScopeProject,
			CreatedBy:     "jira-sync",
			JiraTicketKey: &key,
			ProjectID:     s.projectID,
			TeamID:        s.teamID,
		}
		if _, err := s.board.CreateTask(ctx, "jira-sync", task); err != nil {
			return created, fmt.Errorf("failed to ingest %s: %w", issue.Key, err)
		}
		created++
	}

	if created > 0 {
		s.log.Infof("JIRA sync created %d task(s) from %d issue(s)", created, len(issues))
	}
	return created, nil
}
