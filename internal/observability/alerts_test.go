package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/backoffice/backoffice/internal/auth"
	"github.com/backoffice/backoffice/internal/rbac"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			For         string            `yaml:"for"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

var (
	metricRef  = regexp.MustCompile(`backoffice_[a-z_]+`)
	labelMatch = regexp.MustCompile(`(\w+)(=~|=)"([^"]*)"`)
)

func loadAuthRules(t *testing.T) map[string]string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "auth.yml"))
	if err != nil {
		t.Fatalf("read alert file: %v", err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("decode alert file: %v", err)
	}
	exprs := make(map[string]string)
	for _, group := range file.Groups {
		if group.Name != "auth" {
			continue
		}
		for _, rule := range group.Rules {
			if rule.For == "" || rule.Labels["severity"] == "" || rule.Annotations["summary"] == "" {
				t.Fatalf("rule %s needs for, severity and summary", rule.Alert)
			}
			exprs[rule.Alert] = rule.Expr
		}
	}
	return exprs
}

// Every alert must watch a series this package exports, filtered on label
// values the handlers and the rbac middleware actually emit.
func TestAuthAlertsWatchExportedSeries(t *testing.T) {
	metrics := NewMetrics()
	for _, event := range []string{auth.EventLogin, auth.EventRefresh, auth.EventVerify, auth.EventLogout} {
		for _, outcome := range []string{auth.OutcomeSuccess, auth.OutcomeFailure, auth.OutcomeError} {
			metrics.AuthEvent(event, outcome)
		}
	}
	for _, result := range []string{rbac.ResultGranted, rbac.ResultDenied, rbac.ResultError} {
		metrics.PermissionCheck(result)
	}
	scraped := scrape(t, metrics)

	emitted := map[string][]string{
		"event":   {auth.EventLogin, auth.EventRefresh, auth.EventVerify, auth.EventLogout},
		"outcome": {auth.OutcomeSuccess, auth.OutcomeFailure, auth.OutcomeError},
		"result":  {rbac.ResultGranted, rbac.ResultDenied, rbac.ResultError},
	}

	exprs := loadAuthRules(t)
	if len(exprs) == 0 {
		t.Fatal("auth alert group missing or empty")
	}
	for alert, expr := range exprs {
		names := metricRef.FindAllString(expr, -1)
		if len(names) == 0 {
			t.Fatalf("%s does not reference a backoffice series: %s", alert, expr)
		}
		for _, name := range names {
			if !strings.Contains(scraped, "# TYPE "+name+" ") {
				t.Fatalf("%s watches %s which is not exported", alert, name)
			}
		}
		for _, m := range labelMatch.FindAllStringSubmatch(expr, -1) {
			label, op, value := m[1], m[2], m[3]
			allowed, known := emitted[label]
			if !known {
				t.Fatalf("%s filters on unknown label %s", alert, label)
			}
			values := []string{value}
			if op == "=~" {
				values = strings.Split(value, "|")
			}
			for _, v := range values {
				if !contains(allowed, v) {
					t.Fatalf("%s matches %s=%q which is never emitted", alert, label, v)
				}
			}
		}
	}
}

func TestAuthAlertExpressions(t *testing.T) {
	exprs := loadAuthRules(t)
	cases := map[string][]string{
		"LoginFailureSpike":       {"backoffice_auth_events_total", `event="login"`, `outcome="failure"`},
		"PermissionCheckErrors":   {"backoffice_permission_checks_total", `result="error"`},
		"SessionCacheUnavailable": {"backoffice_auth_events_total", `outcome="error"`, "login", "refresh", "verify"},
	}
	for alert, fragments := range cases {
		expr, ok := exprs[alert]
		if !ok {
			t.Fatalf("alert %s missing", alert)
		}
		for _, fragment := range fragments {
			if !strings.Contains(expr, fragment) {
				t.Fatalf("%s expression %q lacks %s", alert, expr, fragment)
			}
		}
	}
}

func TestAuthRunbookAnchorsExist(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-auth.md"))
	if err != nil {
		t.Fatalf("read runbook: %v", err)
	}
	for _, anchor := range []string{"login-failure-spike", "permission-check-errors", "session-cache-unavailable"} {
		if !strings.Contains(string(data), "## "+anchor) {
			t.Fatalf("runbook section %s missing", anchor)
		}
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
