package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Gyangu/data-portal-sub002/internal/shm"
)

// regionsCmd groups shared-memory region maintenance commands.
var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Inspect and clean shared-memory regions",
}

var regionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List shared-memory regions on this host",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRegionsList(); err != nil {
			exitWithError("failed to list regions", err)
		}
	},
}

var regionsCleanCmd = &cobra.Command{
	Use:   "clean [name...]",
	Short: "Remove shared-memory regions left behind by dead processes",
	Long: `Remove region backing files. With explicit names only those regions are
removed; without arguments every region older than --older-than is removed.

Removing a region another process still has mapped does not invalidate its
mapping, but new processes can no longer attach to it.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRegionsClean(args); err != nil {
			exitWithError("failed to clean regions", err)
		}
	},
}

var cleanOlderThan time.Duration

func init() {
	regionsCleanCmd.Flags().DurationVar(&cleanOlderThan, "older-than", time.Hour,
		"only remove regions not modified within this duration")

	regionsCmd.AddCommand(regionsListCmd)
	regionsCmd.AddCommand(regionsCleanCmd)
}

// regionEntry is the YAML shape printed by `regions list`.
type regionEntry struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Size     int64  `yaml:"size_bytes"`
	Modified string `yaml:"modified"`
}

func runRegionsList() error {
	infos, err := shm.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No regions found.")
		return nil
	}

	entries := make([]regionEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, regionEntry{
			Name:     info.Name,
			Path:     info.Path,
			Size:     info.Size,
			Modified: info.Modified.Format(time.RFC3339),
		})
	}

	out, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	return nil
}

func runRegionsClean(names []string) error {
	if len(names) > 0 {
		for _, name := range names {
			if err := shm.Remove(name); err != nil {
				return err
			}
			fmt.Printf("Removed region %s\n", name)
		}
		return nil
	}

	infos, err := shm.List()
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-cleanOlderThan)
	removed := 0
	for _, info := range infos {
		if info.Modified.After(cutoff) {
			continue
		}
		if err := shm.Remove(info.Name); err != nil {
			return err
		}
		fmt.Printf("Removed region %s (%d bytes, idle since %s)\n",
			info.Name, info.Size, info.Modified.Format(time.RFC3339))
		removed++
	}
	fmt.Printf("Removed %d region(s).\n", removed)
	return nil
}
