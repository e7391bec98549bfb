package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wms-platform/scheduler-core/internal/wms"
)

const pageSize = 200

func newSyncCmd() *cobra.Command {
	var truncate bool

	cmd := &cobra.Command{
		Use:       "sync [tasks|zones|cells|products|all]",
		Short:     "Page reference data from the WMS adapter",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"tasks", "zones", "cells", "products", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCtx()
			if err != nil {
				return err
			}
			defer c.close()

			target := args[0]
			if truncate && (target == "tasks" || target == "all") {
				if err := c.repo.TruncateTasks(cmd.Context()); err != nil {
					return fmt.Errorf("truncate tasks: %w", err)
				}
				fmt.Println("truncated historical task action log")
			}

			switch target {
			case "tasks":
				return syncTasks(cmd.Context(), c.adapter)
			case "zones":
				return syncZones(cmd.Context(), c.adapter)
			case "cells":
				return syncCells(cmd.Context(), c.adapter)
			case "products":
				return syncProducts(cmd.Context(), c.adapter)
			case "all":
				if err := syncTasks(cmd.Context(), c.adapter); err != nil {
					return err
				}
				if err := syncZones(cmd.Context(), c.adapter); err != nil {
					return err
				}
				if err := syncCells(cmd.Context(), c.adapter); err != nil {
					return err
				}
				return syncProducts(cmd.Context(), c.adapter)
			default:
				return fmt.Errorf("unknown sync target %q", target)
			}
		},
	}

	cmd.Flags().BoolVar(&truncate, "truncate", false, "wipe the historical task action log before syncing")
	return cmd
}

func syncTasks(ctx context.Context, adapter wms.Adapter) error {
	n, afterID := 0, ""
	for {
		page, err := adapter.PageTasks(ctx, afterID, pageSize)
		if err != nil {
			return fmt.Errorf("page tasks: %w", err)
		}
		n += len(page.Items)
		if !page.HasMore || page.LastID == "" {
			break
		}
		afterID = page.LastID
	}
	fmt.Printf("synced %d task records\n", n)
	return nil
}

func syncZones(ctx context.Context, adapter wms.Adapter) error {
	n, afterID := 0, ""
	for {
		page, err := adapter.PageZones(ctx, afterID, pageSize)
		if err != nil {
			return fmt.Errorf("page zones: %w", err)
		}
		n += len(page.Items)
		if !page.HasMore || page.LastID == "" {
			break
		}
		afterID = page.LastID
	}
	fmt.Printf("synced %d zone records\n", n)
	return nil
}

func syncCells(ctx context.Context, adapter wms.Adapter) error {
	n, afterID := 0, ""
	for {
		page, err := adapter.PageCells(ctx, afterID, pageSize)
		if err != nil {
			return fmt.Errorf("page cells: %w", err)
		}
		n += len(page.Items)
		if !page.HasMore || page.LastID == "" {
			break
		}
		afterID = page.LastID
	}
	fmt.Printf("synced %d cell records\n", n)
	return nil
}

func syncProducts(ctx context.Context, adapter wms.Adapter) error {
	n, afterID := 0, ""
	for {
		page, err := adapter.PageProducts(ctx, afterID, pageSize)
		if err != nil {
			return fmt.Errorf("page products: %w", err)
		}
		n += len(page.Items)
		if !page.HasMore || page.LastID == "" {
			break
		}
		afterID = page.LastID
	}
	fmt.Printf("synced %d product records\n", n)
	return nil
}
