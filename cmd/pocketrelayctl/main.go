// pocketrelayctl is a small operator CLI for day-to-day administration of a
// running Pocket Relay deployment: banning/unbanning accounts and inspecting
// Galaxy At War progress without having to go through the client.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/dcrodman/pocketrelay/internal/core"
	"github.com/dcrodman/pocketrelay/internal/core/data"
)

func main() {
	app := &cli.App{
		Name:  "pocketrelayctl",
		Usage: "administer a Pocket Relay deployment",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "./",
				Usage: "path to the directory containing config.yaml",
			},
		},
		Commands: []*cli.Command{
			banCommand,
			unbanCommand,
			gawCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func openDB(c *cli.Context) (*gorm.DB, error) {
	cfg := core.LoadConfig(c.String("config"))
	return data.Initialize(cfg.Database.File, false)
}

var banCommand = &cli.Command{
	Name:      "ban",
	Usage:     "ban an account by email address",
	ArgsUsage: "<email>",
	Action: func(c *cli.Context) error {
		return setBanned(c, true)
	},
}

var unbanCommand = &cli.Command{
	Name:      "unban",
	Usage:     "lift a ban on an account by email address",
	ArgsUsage: "<email>",
	Action: func(c *cli.Context) error {
		return setBanned(c, false)
	},
}

func setBanned(c *cli.Context, banned bool) error {
	email := c.Args().First()
	if email == "" {
		return cli.Exit("usage: pocketrelayctl ban|unban <email>", 1)
	}

	db, err := openDB(c)
	if err != nil {
		return err
	}

	account, err := data.FindAccountByEmail(db, email)
	if err != nil {
		return err
	}
	if account == nil {
		return cli.Exit(fmt.Sprintf("no account found for %s", email), 1)
	}

	account.Banned = banned
	if err := db.Save(account).Error; err != nil {
		return err
	}

	fmt.Printf("account %s: banned=%v\n", email, banned)
	return nil
}

var gawCommand = &cli.Command{
	Name:      "galaxy-at-war",
	Aliases:   []string{"gaw"},
	Usage:     "print an account's Galaxy At War progress",
	ArgsUsage: "<email>",
	Action: func(c *cli.Context) error {
		email := c.Args().First()
		if email == "" {
			return cli.Exit("usage: pocketrelayctl galaxy-at-war <email>", 1)
		}

		db, err := openDB(c)
		if err != nil {
			return err
		}

		account, err := data.FindAccountByEmail(db, email)
		if err != nil {
			return err
		}
		if account == nil {
			return cli.Exit(fmt.Sprintf("no account found for %s", email), 1)
		}

		gaw, err := data.LoadGalaxyAtWar(db, account.ID)
		if err != nil {
			return err
		}
		if gaw == nil {
			fmt.Printf("%s has no Galaxy At War progress yet\n", email)
			return nil
		}

		fmt.Printf("%s: earth=%d%% asari=%d%% turian=%d%% krogan=%d%% salarian=%d%%\n",
			email, gaw.EarthPercent, gaw.AsariPercent, gaw.TurianPercent, gaw.KroganPercent, gaw.SalarianPercent)
		return nil
	},
}
