package observability

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
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

var metricName = regexp.MustCompile(`agrodistri_[a-z_]+`)

func TestLifecycleAlertRules(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "lifecycle.yml"))
	require.NoError(t, err)

	var rf ruleFile
	require.NoError(t, yaml.Unmarshal(raw, &rf))
	require.Len(t, rf.Groups, 1)
	require.Equal(t, "lifecycle", rf.Groups[0].Name)

	// Touch every vector so its family shows up in the scrape.
	m := NewMetrics()
	m.Lifecycle().Rejected("order.create", "insufficient_stock")
	m.Lifecycle().DeliveryTransition("cancelled")
	m.Middleware(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	exposed := scrape(t, m)

	severities := map[string]string{
		"HighErrorRate":          "critical",
		"StockRejectionSpike":    "warning",
		"DeliveryCancelledSpike": "warning",
	}
	rules := rf.Groups[0].Rules
	require.Len(t, rules, len(severities))
	for _, rule := range rules {
		want, ok := severities[rule.Alert]
		require.Truef(t, ok, "unexpected rule %q", rule.Alert)
		assert.Equal(t, want, rule.Labels["severity"], rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)

		names := metricName.FindAllString(rule.Expr, -1)
		require.NotEmptyf(t, names, "rule %s does not query an agrodistri metric", rule.Alert)
		for _, name := range names {
			assert.Containsf(t, exposed, "# TYPE "+name+" ", "rule %s queries unknown metric %s", rule.Alert, name)
		}
	}
}
