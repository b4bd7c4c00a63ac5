// Command mkblockfs formats a new blockfs image file.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/blockimg/blockfs/blockdev"
	"github.com/blockimg/blockfs/fs"
	"github.com/blockimg/blockfs/presets"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "mkblockfs",
		Usage:     "Create a new blockfs image file",
		ArgsUsage: "IMAGE_FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "preset",
				Usage: fmt.Sprintf("named image size preset (one of: %v)", presets.Slugs()),
				Value: "default",
			},
			&cli.UintFlag{
				Name:  "blocks",
				Usage: "total number of 1024-byte blocks (overrides --preset)",
			},
			&cli.UintFlag{
				Name:  "inode-blocks",
				Usage: "blocks reserved for the inode table (overrides --preset)",
			},
		},
		Action: formatImage,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("mkblockfs: %s", err.Error())
	}
}

func formatImage(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one argument: IMAGE_FILE", 1)
	}
	path := c.Args().Get(0)

	totalBlocks := uint32(c.Uint("blocks"))
	inodeBlocks := uint32(c.Uint("inode-blocks"))

	if totalBlocks == 0 {
		preset, err := presets.Get(c.String("preset"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		totalBlocks = uint32(preset.TotalBlocks)
		if inodeBlocks == 0 {
			inodeBlocks = uint32(preset.InodeRegionBlocks)
		}
	}
	if inodeBlocks == 0 {
		// fs.Format uses a 1-block inode table when given zero.
		inodeBlocks = 1
	}

	dev, err := blockdev.CreateFileDevice(path, totalBlocks)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer dev.Close()

	if err := fs.Format(dev, fs.FormatOptions{InodeRegionBlocks: inodeBlocks}); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("formatted %s: %d blocks, %d inode-table blocks\n", path, totalBlocks, inodeBlocks)
	return nil
}
