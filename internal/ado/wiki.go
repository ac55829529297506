package ado

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
)

// Wikis lists the wikis in the project.
func (c *Client) Wikis(ctx context.Context) ([]Wiki, error) {
	var resp listResponse[Wiki]
	if err := c.get(ctx, c.projectPath("/_apis/wiki/wikis"), &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// FindWikiPageByTitle searches every wiki for a page whose path is "/"+title,
// ignoring case. It returns nil when no wiki has one. A wiki whose page tree
// cannot be read is logged and skipped.
func (c *Client) FindWikiPageByTitle(ctx context.Context, title string) (*WikiPage, error) {
	wikis, err := c.Wikis(ctx)
	if err != nil {
		return nil, fmt.Errorf("ado: list wikis: %w", err)
	}
	want := "/" + strings.ToLower(title)

	for _, wiki := range wikis {
		var root wikiPageNode
		path := fmt.Sprintf("/%s/_apis/wiki/wikis/%s/pages?recursionLevel=full&api-version=%s",
			url.PathEscape(c.project), url.PathEscape(wiki.ID), apiVersion)
		if err := c.get(ctx, path, &root); err != nil {
			log.Printf("ado: search wiki %s: %v", wiki.Name, err)
			continue
		}
		page := findPage(&root, want)
		if page == nil {
			continue
		}
		return &WikiPage{
			WikiName: wiki.Name,
			PageID:   page.ID,
			PagePath: page.Path,
			URL:      fmt.Sprintf("%s/%s/_wiki/wikis/%s/%d%s", c.baseURL, c.project, wiki.Name, page.ID, page.Path),
		}, nil
	}
	return nil, nil
}

// findPage walks the page tree depth first without recursion.
func findPage(root *wikiPageNode, lowerPath string) *wikiPageNode {
	stack := []*wikiPageNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Path != "" && strings.ToLower(n.Path) == lowerPath {
			return n
		}
		for i := len(n.SubPages) - 1; i >= 0; i-- {
			stack = append(stack, &n.SubPages[i])
		}
	}
	return nil
}
