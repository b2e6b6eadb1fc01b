package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zotkit/zotkit/pkg/zotero"
)

func TestCrossRefWork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works/10.1234%2Fexample" && r.URL.Path != "/works/10.1234/example" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"message": {
			"DOI": "10.1234/example",
			"title": ["A Study of Things"],
			"container-title": ["Journal of Examples"],
			"volume": "42",
			"issue": "3",
			"page": "100-110",
			"abstract": "<jats:p>Findings were found.</jats:p>",
			"URL": "https://doi.org/10.1234/example",
			"author": [{"given": "Ada", "family": "Lovelace"}],
			"issued": {"date-parts": [[2023, 5]]}
		}}`))
	}))
	defer srv.Close()

	client := NewCrossRefClient(srv.URL, zerolog.Nop())

	work, err := client.Work(context.Background(), "https://doi.org/10.1234/example")
	require.NoError(t, err)
	assert.Equal(t, "A Study of Things", work.Title)
	assert.Equal(t, "Journal of Examples", work.ContainerTitle)
	assert.Equal(t, "2023-5", work.Date)
	assert.Equal(t, "Findings were found.", work.Abstract)
	require.Len(t, work.Authors, 1)
	assert.Equal(t, "Lovelace", work.Authors[0].Family)

	t.Run("populates item data", func(t *testing.T) {
		d := zotero.ItemData{"itemType": "journalArticle"}
		work.Populate(d)
		assert.Equal(t, "A Study of Things", d.Str("title"))
		assert.Equal(t, "42", d.Str("volume"))
		require.Len(t, d.Creators(), 1)
		assert.Equal(t, "Ada", d.Creators()[0].FirstName)
	})

	t.Run("unknown DOI is an error", func(t *testing.T) {
		_, err := client.Work(context.Background(), "10.9999/missing")
		require.ErrorContains(t, err, "not found")
	})

	t.Run("empty DOI is an error", func(t *testing.T) {
		_, err := client.Work(context.Background(), "  ")
		require.Error(t, err)
	})
}

func TestNormalizeArxivID(t *testing.T) {
	cases := map[string]string{
		"2301.12345":                           "2301.12345",
		"arXiv:2301.12345":                     "2301.12345",
		"https://arxiv.org/abs/2301.12345":     "2301.12345",
		"https://arxiv.org/pdf/2301.12345.pdf": "2301.12345",
		"10.48550/arXiv.2301.12345":            "2301.12345",
		"math/0211159":                         "math/0211159",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeArxivID(input), "input %q", input)
	}
}

func TestArxivEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id_list") != "2301.12345" {
			w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"><entry><title>Error</title></entry></feed>`))
			return
		}
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom">
			<entry>
				<id>http://arxiv.org/abs/2301.12345v1</id>
				<title>Deep  Learning
				 for Everything</title>
				<summary>We apply deep learning to everything.</summary>
				<published>2023-01-15T18:00:00Z</published>
				<author><name>Grace Murray Hopper</name></author>
				<author><name>Plato</name></author>
				<category term="cs.LG"/>
				<category term="stat.ML"/>
			</entry>
		</feed>`))
	}))
	defer srv.Close()

	client := NewArxivClient(srv.URL, zerolog.Nop())

	entry, err := client.Entry(context.Background(), "arXiv:2301.12345")
	require.NoError(t, err)
	assert.Equal(t, "Deep Learning for Everything", entry.Title)
	assert.Equal(t, "2023-01-15", entry.Published)
	assert.Equal(t, []string{"Grace Murray Hopper", "Plato"}, entry.Authors)
	assert.Equal(t, []string{"cs.LG", "stat.ML"}, entry.Categories)

	t.Run("populates item data", func(t *testing.T) {
		d := zotero.ItemData{"itemType": "preprint"}
		entry.Populate(d)
		assert.Equal(t, "arXiv", d.Str("repository"))
		assert.Equal(t, "arXiv:2301.12345", d.Str("archiveID"))
		creators := d.Creators()
		require.Len(t, creators, 2)
		assert.Equal(t, "Grace Murray", creators[0].FirstName)
		assert.Equal(t, "Hopper", creators[0].LastName)
		assert.Equal(t, "Plato", creators[1].LastName)
		assert.Equal(t, []string{"cs.LG"}, d.Tags())
	})

	t.Run("unknown ID is an error", func(t *testing.T) {
		_, err := client.Entry(context.Background(), "0000.00000")
		require.ErrorContains(t, err, "not found")
	})
}

func TestFetchWebpage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/og":
			w.Write([]byte(`<html><head>
				<title>Doc Title</title>
				<meta property="og:title" content="OG Title"/>
				<meta property="og:description" content="OG description."/>
			</head><body>ignored</body></html>`))
		case "/plain":
			w.Write([]byte(`<html><head><title>Plain Title</title></head><body></body></html>`))
		default:
			w.Write([]byte(`<html><head></head><body></body></html>`))
		}
	}))
	defer srv.Close()

	t.Run("open graph wins", func(t *testing.T) {
		page, err := FetchWebpage(context.Background(), srv.URL+"/og")
		require.NoError(t, err)
		assert.Equal(t, "OG Title", page.Title)
		assert.Equal(t, "OG description.", page.Description)
	})

	t.Run("document title fallback", func(t *testing.T) {
		page, err := FetchWebpage(context.Background(), srv.URL+"/plain")
		require.NoError(t, err)
		assert.Equal(t, "Plain Title", page.Title)
	})

	t.Run("url fallback when untitled", func(t *testing.T) {
		page, err := FetchWebpage(context.Background(), srv.URL+"/bare")
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/bare", page.Title)

		d := zotero.ItemData{"itemType": "webpage"}
		page.Populate(d)
		assert.NotEmpty(t, d.Str("accessDate"))
	})
}
