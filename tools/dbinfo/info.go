package main

import (
	"fmt"
	"os"

	"github.com/Fantom-foundation/Chainbase/segment"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

var getInfoCommand = cli.Command{
	Action:    getInfo,
	Name:      "info",
	Usage:     "prints the configure record and directory of a segment file",
	ArgsUsage: "<segment file>",
}

func getInfo(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return fmt.Errorf("missing segment file parameter")
	}
	path := ctx.Args().Get(0)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	file, err := segment.OpenFile(path, false, info.Size(), true)
	if err != nil {
		return err
	}
	defer file.Close()

	cfg := file.GetConfigure()
	fmt.Printf("Segment:   %s\n", path)
	fmt.Printf("Size:      %s (%d bytes)\n", humanize.Bytes(uint64(file.Size())), file.Size())
	fmt.Printf("Free:      %s (%d bytes)\n", humanize.Bytes(uint64(file.FreeMemory())), file.FreeMemory())
	fmt.Printf("Database:  %d\n", cfg.DatabaseID)
	fmt.Printf("Instance:  %d\n", cfg.InstanceID)
	fmt.Printf("Unique segment manager id:   %d\n", cfg.UniqueSegmentManagerID)
	fmt.Printf("Writable segment manager id: %d\n", cfg.WritableSegmentManagerID)

	entries := file.ListEntries()
	fmt.Printf("Directory: %d record(s)\n", len(entries))
	for _, entry := range entries {
		fmt.Printf("  %016x -> offset %d\n", entry.NameHash, entry.Offset)
	}
	return nil
}
