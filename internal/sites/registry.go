package sites

import (
	"fmt"

	"github.com/lmichel/beautytrack/internal/fetch"
)

// ErrUnknownSite reports an adapter lookup for a site nobody implements.
type ErrUnknownSite struct {
	Site string
}

func (e *ErrUnknownSite) Error() string {
	return fmt.Sprintf("no adapter for site %q", e.Site)
}

var constructors = map[string]func(*Client) fetch.Adapter{
	"sephora":    func(c *Client) fetch.Adapter { return NewSephora(c) },
	"nocibe":     func(c *Client) fetch.Adapter { return NewNocibe(c) },
	"marionnaud": func(c *Client) fetch.Adapter { return NewMarionnaud(c) },
}

// New returns the adapter for a site name.
func New(site string, client *Client) (fetch.Adapter, error) {
	ctor, ok := constructors[site]
	if !ok {
		return nil, &ErrUnknownSite{Site: site}
	}
	return ctor(client), nil
}

// Names lists every implemented site adapter.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	return names
}
