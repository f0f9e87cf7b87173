package explorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proberun/probe/internal/browserdriver"
	"github.com/proberun/probe/internal/domain"
)

func TestExploreZeroMaxPagesReturnsEmptyMap(t *testing.T) {
	ctx := &browserdriver.FakeContext{}
	e := New(ctx, nil)

	appMap, err := e.Explore(context.Background(), "https://host/", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, appMap.TotalPages)
	assert.Empty(t, ctx.Pages)
}

func TestExploreSameOriginOnly(t *testing.T) {
	ctx := &browserdriver.FakeContext{}
	e := New(ctx, nil)

	appMap, err := e.Explore(context.Background(), "https://host/", 10)
	require.NoError(t, err)
	require.Len(t, ctx.Pages, 1)

	for _, pg := range appMap.Pages {
		assert.NotContains(t, pg.URL, "other")
	}
}

func TestDetectPageTypeLanding(t *testing.T) {
	assert.Equal(t, domain.PageLanding, detectPageType("/", "Home", nil))
}

func TestDetectPageTypeLogin(t *testing.T) {
	assert.Equal(t, domain.PageLogin, detectPageType("/login", "Sign In", nil))
}

func TestRequiresAuthDashboardTrue(t *testing.T) {
	assert.True(t, requiresAuth("/dashboard"))
	assert.False(t, requiresAuth("/login"))
}

func TestClassifyButtonAction(t *testing.T) {
	caser := newLowerCaser()
	assert.Equal(t, "submit", classifyButtonAction(caser, "Save Changes", ""))
	assert.Equal(t, "delete", classifyButtonAction(caser, "Delete Account", ""))
	assert.Equal(t, "click", classifyButtonAction(caser, "Whatever", ""))
}
