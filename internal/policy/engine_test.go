package policy

import (
	"testing"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/go-cmp/cmp"

	"github.com/app-sre/proms-mcp/internal/core"
)

// Helper to compile expr safely
func compile(t *testing.T, code string) *vm.Program {
	t.Helper()
	p, err := expr.Compile(code, expr.AsBool())
	if err != nil {
		t.Fatalf("compiling %q: %v", code, err)
	}
	return p
}

func testRules(t *testing.T) []core.AccessRule {
	t.Helper()
	return []core.AccessRule{
		{
			Name: "sre-prod",
			Match: core.AccessMatch{
				Groups: []string{"system:sre", "system:admin"},
			},
			Datasources: []string{"prod-*"},
		},
		{
			Name: "admins-everything",
			Match: core.AccessMatch{
				Condition: &core.Condition{
					Key: "groups", Operator: core.OpContains, Value: "system:admin",
				},
			},
			Datasources: []string{"*"},
		},
		{
			Name: "alice-staging",
			Match: core.AccessMatch{
				Expr:         `username == "alice"`,
				CompiledExpr: compile(t, `username == "alice"`),
			},
			Datasources: []string{"staging-prometheus"},
		},
	}
}

func identity(username string, groups ...string) core.Identity {
	return core.Identity{
		Username:  username,
		SubjectID: username + "-id",
		Groups:    groups,
		Method:    core.MethodBearer,
	}
}

func TestEngine_Allowed(t *testing.T) {
	eng := New(testRules(t))

	tests := []struct {
		name       string
		identity   core.Identity
		datasource string
		want       bool
	}{
		{
			name:       "group rule with prefix wildcard",
			identity:   identity("carol", "system:sre"),
			datasource: "prod-prometheus",
			want:       true,
		},
		{
			name:       "group rule does not cover other prefixes",
			identity:   identity("carol", "system:sre"),
			datasource: "staging-prometheus",
			want:       false,
		},
		{
			name:       "condition rule with bare wildcard",
			identity:   identity("root", "system:admin"),
			datasource: "anything-at-all",
			want:       true,
		},
		{
			name:       "expr rule exact name",
			identity:   identity("alice", "developers"),
			datasource: "staging-prometheus",
			want:       true,
		},
		{
			name:       "no rule matches identity",
			identity:   identity("mallory", "guests"),
			datasource: "prod-prometheus",
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eng.Allowed(tt.identity, tt.datasource); got != tt.want {
				t.Errorf("Allowed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngine_OpenAccessWithoutRules(t *testing.T) {
	eng := New(nil)
	if !eng.OpenAccess() {
		t.Fatal("OpenAccess() = false, want true")
	}
	if !eng.Allowed(identity("anyone"), "prod-prometheus") {
		t.Error("Allowed() = false, want true without rules")
	}

	datasources := []core.Datasource{{Name: "a"}, {Name: "b"}}
	if diff := cmp.Diff(datasources, eng.Filter(identity("anyone"), datasources)); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_Filter(t *testing.T) {
	eng := New(testRules(t))
	datasources := []core.Datasource{
		{Name: "prod-prometheus"},
		{Name: "prod-thanos"},
		{Name: "staging-prometheus"},
		{Name: "dev-prometheus"},
	}

	t.Run("sre sees prod only", func(t *testing.T) {
		got := eng.Filter(identity("carol", "system:sre"), datasources)
		want := []core.Datasource{{Name: "prod-prometheus"}, {Name: "prod-thanos"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("admin sees everything", func(t *testing.T) {
		got := eng.Filter(identity("root", "system:admin"), datasources)
		if diff := cmp.Diff(datasources, got); diff != "" {
			t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unmatched identity sees nothing", func(t *testing.T) {
		if got := eng.Filter(identity("mallory"), datasources); len(got) != 0 {
			t.Errorf("Filter() = %v, want empty", got)
		}
	})

	t.Run("order is preserved across multiple matching rules", func(t *testing.T) {
		got := eng.Filter(identity("alice", "system:sre"), datasources)
		want := []core.Datasource{
			{Name: "prod-prometheus"},
			{Name: "prod-thanos"},
			{Name: "staging-prometheus"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestEngine_AllowedNames(t *testing.T) {
	eng := New(testRules(t))
	names := []string{"prod-prometheus", "staging-prometheus", "dev-prometheus"}

	got := eng.AllowedNames(identity("carol", "system:sre"), names)
	want := []string{"prod-prometheus"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AllowedNames() mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchDatasource(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*", "anything", true},
		{"prod-prometheus", "prod-prometheus", true},
		{"prod-prometheus", "prod-prometheus2", false},
		{"prod-*", "prod-prometheus", true},
		{"prod-*", "prod-", true},
		{"prod-*", "production", false},
		{"prod-*", "staging-prometheus", false},
	}
	for _, tt := range tests {
		if got := matchDatasource([]string{tt.pattern}, tt.name); got != tt.want {
			t.Errorf("matchDatasource(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}
