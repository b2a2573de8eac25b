package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Børsmeldinger</title>
    <item>
      <title>Equinor ASA: Resultat for andre kvartal</title>
      <link>https://newsweb.example/message/1</link>
      <description>Equinor legger frem resultat for andre kvartal 2026.</description>
      <pubDate>Mon, 24 Aug 2026 08:00:00 +0200</pubDate>
    </item>
    <item>
      <title>DNB Bank ASA: Tilbakekjøp av aksjer</title>
      <link>https://newsweb.example/message/2</link>
      <description>DNB har gjennomført tilbakekjøp.</description>
      <pubDate>Mon, 24 Aug 2026 07:30:00 +0200</pubDate>
    </item>
    <item>
      <title></title>
      <link>https://newsweb.example/message/3</link>
    </item>
  </channel>
</rss>`

func TestClient_Refresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 25, nil)
	require.NoError(t, c.Refresh(context.Background()))

	items := c.Items()
	// The titleless item is skipped.
	require.Len(t, items, 2)
	assert.Equal(t, "Equinor ASA: Resultat for andre kvartal", items[0].Title)
	assert.Equal(t, "https://newsweb.example/message/1", items[0].Link)
	assert.Equal(t, 2026, items[0].PublishedAt.Year())
	assert.False(t, c.FetchedAt().IsZero())
}

func TestClient_MaxItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 1, nil)
	require.NoError(t, c.Refresh(context.Background()))
	assert.Len(t, c.Items(), 1)
}

func TestClient_RefreshKeepsOldItemsOnError(t *testing.T) {
	failing := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 25, nil)
	require.NoError(t, c.Refresh(context.Background()))
	require.Len(t, c.Items(), 2)

	failing = true
	require.Error(t, c.Refresh(context.Background()))
	assert.Len(t, c.Items(), 2)
}

func TestClient_RejectsNonRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>not a feed</body></html>`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 25, nil)
	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not RSS")
}

func TestParsePubDate(t *testing.T) {
	ts, err := parsePubDate("Mon, 24 Aug 2026 08:00:00 +0200")
	require.NoError(t, err)
	assert.Equal(t, time.Month(8), ts.Month())

	_, err = parsePubDate("i går")
	assert.Error(t, err)
}
