package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"medcal/internal/model"
)

var drugInput model.DrugInput

var drugsCmd = &cobra.Command{
	Use:   "drugs",
	Short: "Browse and manage the drug catalog",
}

var drugsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog drugs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := login(cmd.Context())
		if err != nil {
			return err
		}
		drugs, err := a.client.Drugs(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tDOSAGE\tFREQUENCY\tINTERVAL (H)")
		for _, d := range drugs {
			fmt.Fprintf(tw, "%s\t%s\t%g\t%d\t%g\n", d.ID, d.Name, d.Dosage, d.Frequency, d.Interval)
		}
		return tw.Flush()
	},
}

var drugsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a drug (superuser only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loginSuperuser(cmd)
		if err != nil {
			return err
		}
		if err := checkDrugInput(drugInput); err != nil {
			return err
		}
		d, err := a.client.CreateDrug(cmd.Context(), drugInput)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created drug %s (%s)\n", d.ID, d.Name)
		return nil
	},
}

var drugsUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Replace a drug's fields (superuser only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loginSuperuser(cmd)
		if err != nil {
			return err
		}
		if err := checkDrugInput(drugInput); err != nil {
			return err
		}
		d, err := a.client.UpdateDrug(cmd.Context(), model.ID(args[0]), drugInput)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated drug %s (%s)\n", d.ID, d.Name)
		return nil
	},
}

var drugsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a drug (superuser only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loginSuperuser(cmd)
		if err != nil {
			return err
		}
		if err := a.client.DeleteDrug(cmd.Context(), model.ID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted drug %s\n", args[0])
		return nil
	},
}

func loginSuperuser(cmd *cobra.Command) (*app, error) {
	a, err := login(cmd.Context())
	if err != nil {
		return nil, err
	}
	if !a.sess.User.IsSuperuser {
		return nil, errors.New("drug catalog changes require a superuser account")
	}
	return a, nil
}

func checkDrugInput(in model.DrugInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return errors.New("--name must not be empty")
	case !(in.Dosage > 0):
		return errors.New("--dosage must be greater than 0")
	case in.Frequency < 1:
		return errors.New("--frequency must be at least 1")
	case !(in.Interval > 0):
		return errors.New("--interval must be greater than 0")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(drugsCmd)
	drugsCmd.AddCommand(drugsListCmd, drugsAddCmd, drugsUpdateCmd, drugsDeleteCmd)

	for _, c := range []*cobra.Command{drugsAddCmd, drugsUpdateCmd} {
		f := c.Flags()
		f.StringVarP(&drugInput.Name, "name", "n", "", "Drug name")
		f.Float64Var(&drugInput.Dosage, "dosage", 0, "Dosage per intake")
		f.IntVar(&drugInput.Frequency, "frequency", 1, "Intakes per day")
		f.Float64Var(&drugInput.Interval, "interval", 24, "Hours between intakes")
		f.StringVar(&drugInput.Description, "description", "", "Free-form notes")
	}
}
