package cdp

import (
	"context"
	"fmt"

	"cdpharness/pkg/model"

	"github.com/mafredri/cdp/devtool"
)

// ListTargets 列出浏览器中可附加的页面目标
func ListTargets(ctx context.Context, devtoolsURL string) ([]model.TargetInfo, error) {
	targets, err := devtool.New(devtoolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	out := make([]model.TargetInfo, 0, len(targets))
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		out = append(out, model.TargetInfo{
			ID:    model.TargetID(t.ID),
			Type:  string(t.Type),
			URL:   t.URL,
			Title: t.Title,
		})
	}
	return out, nil
}
