package fuzzysearch

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
)

// Site tags used by the remote index in the "site" field.
const (
	SiteFurAffinity = "FurAffinity"
	SiteE621        = "e621"
	SiteTwitter     = "Twitter"
)

// File is one candidate returned by the remote index.
type File struct {
	ID       int32    `json:"id"`
	SiteID   int64    `json:"site_id"`
	URL      string   `json:"url"`
	Filename string   `json:"filename"`
	Artists  []string `json:"artists"`
	Hash     *int64   `json:"hash"`

	// Site holds the site specific metadata, nil when the index sent none.
	Site SiteInfo `json:"-"`

	// Distance to the query, filled in by Lookup. Nil when either hash is missing.
	Distance *uint64 `json:"distance,omitempty"`
}

// SiteInfo is the site specific part of a File. The concrete types are
// FurAffinityFile, E621File and TwitterFile.
type SiteInfo interface {
	Name() string
	siteTag() string
}

// FurAffinityFile is FurAffinity metadata.
type FurAffinityFile struct {
	FileID int32 `json:"file_id"`
}

// E621File is e621 metadata.
type E621File struct {
	Sources []string `json:"sources"`
}

// TwitterFile carries no extra metadata.
type TwitterFile struct{}

func (FurAffinityFile) Name() string { return "FurAffinity" }
func (E621File) Name() string        { return "e621" }
func (TwitterFile) Name() string     { return "Twitter" }

func (FurAffinityFile) siteTag() string { return SiteFurAffinity }
func (E621File) siteTag() string        { return SiteE621 }
func (TwitterFile) siteTag() string     { return SiteTwitter }

// StoredFingerprint returns the candidate's hash, if the index has one.
func (f File) StoredFingerprint() (fingerprint.Fingerprint, bool) {
	if f.Hash == nil {
		return 0, false
	}
	return fingerprint.Fingerprint(*f.Hash), true
}

// SiteName returns the display name of the source site, or "" when unknown.
func (f File) SiteName() string {
	if f.Site == nil {
		return ""
	}
	return f.Site.Name()
}

// ArtistNames joins the artists for display.
func (f File) ArtistNames() string {
	if len(f.Artists) == 0 {
		return "Unknown"
	}
	return strings.Join(f.Artists, ", ")
}

// twitterUsername returns the first artist, which is the account name for tweets.
func (f File) twitterUsername() string {
	if len(f.Artists) == 0 {
		return ""
	}
	return f.Artists[0]
}

// Link returns the URL of the post on its source site, or "" if it cannot be built.
func (f File) Link() string {
	switch f.Site.(type) {
	case FurAffinityFile:
		return fmt.Sprintf("https://www.furaffinity.net/view/%d/", f.SiteID)
	case E621File:
		return fmt.Sprintf("https://e621.net/post/show/%d", f.SiteID)
	case TwitterFile:
		if f.twitterUsername() == "" {
			return ""
		}
		return fmt.Sprintf("https://twitter.com/%s/status/%d", f.twitterUsername(), f.SiteID)
	default:
		return ""
	}
}

// PrettyLink returns Link without the scheme, for display.
func (f File) PrettyLink() string {
	switch f.Site.(type) {
	case FurAffinityFile:
		return fmt.Sprintf("furaffinity.net/view/%d", f.SiteID)
	case E621File:
		return fmt.Sprintf("e621.net/post/show/%d", f.SiteID)
	case TwitterFile:
		if f.twitterUsername() == "" {
			return ""
		}
		return fmt.Sprintf("twitter.com/%s/status/%d", f.twitterUsername(), f.SiteID)
	default:
		return ""
	}
}

// fileAlias has File's fields without its methods, to avoid recursion in (un)marshalling.
type fileAlias File

type siteEnvelope struct {
	Site     string          `json:"site,omitempty"`
	SiteInfo json.RawMessage `json:"site_info,omitempty"`
}

// UnmarshalJSON decodes the adjacently tagged "site" / "site_info" pair.
func (f *File) UnmarshalJSON(data []byte) error {
	var base fileAlias
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal file: %w", err)
	}

	var env siteEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal site info: %w", err)
	}

	site, err := decodeSiteInfo(env.Site, env.SiteInfo)
	if err != nil {
		return err
	}

	*f = File(base)
	f.Site = site
	return nil
}

// MarshalJSON encodes a File in the same shape the remote index uses.
func (f File) MarshalJSON() ([]byte, error) {
	type wire struct {
		fileAlias
		Site     string   `json:"site,omitempty"`
		SiteInfo SiteInfo `json:"site_info,omitempty"`
	}
	w := wire{fileAlias: fileAlias(f)}
	if f.Site != nil {
		w.Site = f.Site.siteTag()
		if _, ok := f.Site.(TwitterFile); !ok {
			w.SiteInfo = f.Site
		}
	}
	return json.Marshal(w)
}

func isNullJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// decodeSiteInfo resolves a site tag and its payload. Unknown tags yield nil.
func decodeSiteInfo(tag string, raw json.RawMessage) (SiteInfo, error) {
	switch tag {
	case SiteFurAffinity:
		var fa FurAffinityFile
		if !isNullJSON(raw) {
			if err := json.Unmarshal(raw, &fa); err != nil {
				return nil, fmt.Errorf("unmarshal FurAffinity site info: %w", err)
			}
		}
		return fa, nil
	case SiteE621:
		var e E621File
		if !isNullJSON(raw) {
			if err := json.Unmarshal(raw, &e); err != nil {
				return nil, fmt.Errorf("unmarshal e621 site info: %w", err)
			}
		}
		return e, nil
	case SiteTwitter:
		return TwitterFile{}, nil
	default:
		return nil, nil
	}
}
