// Command blockfsck is the offline, read-only image consistency checker.
package main

import (
	"fmt"
	"os"

	"github.com/blockimg/blockfs/blockdev"
	"github.com/blockimg/blockfs/fsck"
	"github.com/blockimg/blockfs/layout"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "blockfsck",
		Usage:     "Report on the consistency of a blockfs image",
		ArgsUsage: "IMAGE_FILE",
		Action:    checkImage,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "blockfsck:", err)
		os.Exit(1)
	}
}

func checkImage(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one argument: IMAGE_FILE", 1)
	}
	path := c.Args().Get(0)

	info, err := os.Stat(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	totalBlocks := uint32(info.Size() / layout.BlockSize)

	dev, err := blockdev.OpenFileDevice(path, totalBlocks)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer dev.Close()

	report, err := fsck.Check(dev)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	printReport(report)
	return nil
}

func printReport(report *fsck.Report) {
	sb := report.Superblock
	fmt.Printf(
		"superblock: magic: %08x\n            imap: %d blocks\n            bmap: %d blocks\n            inodes: %d blocks\n            blocks: %d\n            root inode: %d\n\n",
		sb.Magic, sb.InodeMapSz, sb.BlockMapSz, sb.InodeRegionSz, sb.NumBlocks, sb.RootInode,
	)

	fmt.Print("allocated inodes: ")
	printList(report.AllocatedInodes)
	fmt.Print("allocated blocks: ")
	printList(report.AllocatedBlocks)

	for _, e := range report.Entries {
		if e.IsDir {
			fmt.Printf("directory: inode %d (block %d)\n", e.Inode, e.DirBlock)
		} else {
			fmt.Printf("file: inode %d\n      uid/gid %d/%d\n      mode %08o\n      size  %d\n      blocks: ",
				e.Inode, e.UID, e.GID, e.Mode, e.Size)
			printList(e.DataBlocks)
		}
	}
	fmt.Println()

	for _, d := range report.Diagnostics {
		fmt.Println("***ERROR***", d)
	}

	fmt.Print("unreachable inodes: ")
	printList(report.UnreachableInode)
	fmt.Print("unreachable blocks: ")
	printList(report.UnreachableBlock)
}

func printList(values []uint32) {
	for i, v := range values {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Print(v)
	}
	fmt.Println()
}
