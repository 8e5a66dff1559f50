package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"medcal/internal/course"
	"medcal/internal/tz"
)

var eventsJSON bool

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Fetch courses and print the resulting calendar events",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := login(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.store.Refresh(cmd.Context()); err != nil {
			return err
		}
		snap := a.store.Snapshot()
		out := cmd.OutOrStdout()

		if eventsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap.Events)
		}

		zone := tz.Zone(a.store.OffsetMinutes())
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "ID\tKIND\tSTART (%s)\tEND\tTITLE\n", zone)
		for _, ev := range snap.Events {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				ev.ID, ev.Kind,
				ev.StartDate.In(zone).Format("2006-01-02 15:04"),
				ev.EndDate.In(zone).Format("2006-01-02 15:04"),
				ev.Title,
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for _, sk := range snap.Skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %v\n", sk)
		}
		return nil
	},
}

var courseFlags struct {
	drugID        string
	name          string
	dosage        float64
	frequency     int
	interval      float64
	description   string
	start         string
	end           string
	startSchedule string
	inactive      bool
}

var addCourseCmd = &cobra.Command{
	Use:   "add-course",
	Short: "Validate and submit a new medication course",
	Long: `Dates are wall-clock values in your UTC offset, e.g. 2024-01-01T08:00.
With --drug-id, unset fields are taken from that catalog entry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := login(ctx)
		if err != nil {
			return err
		}

		sub := course.Submission{IsActive: true}
		if courseFlags.drugID != "" {
			drugs, err := a.client.Drugs(ctx)
			if err != nil {
				return err
			}
			found := false
			for _, d := range drugs {
				if string(d.ID) == courseFlags.drugID {
					sub = course.FromDrug(d)
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("no drug with id %s", courseFlags.drugID)
			}
		}

		flags := cmd.Flags()
		if flags.Changed("name") {
			sub.NameDrug = courseFlags.name
		}
		if flags.Changed("dosage") {
			sub.Dosage = courseFlags.dosage
		}
		if flags.Changed("frequency") {
			sub.Frequency = courseFlags.frequency
		}
		if flags.Changed("interval") {
			sub.Interval = courseFlags.interval
		}
		if flags.Changed("description") {
			sub.Description = courseFlags.description
		}
		sub.StartSchedule = courseFlags.startSchedule
		if courseFlags.inactive {
			sub.IsActive = false
		}
		if courseFlags.start != "" {
			if sub.StartDatetime, err = tz.ParseLocal(courseFlags.start); err != nil {
				return err
			}
		}
		if courseFlags.end != "" {
			if sub.EndDatetime, err = tz.ParseLocal(courseFlags.end); err != nil {
				return err
			}
		}

		rec, err := a.store.Submit(ctx, sub)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created course %s (%s), %d events now\n", rec.ID, rec.NameDrug, len(a.store.Snapshot().Events))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Print events as JSON")

	rootCmd.AddCommand(addCourseCmd)
	f := addCourseCmd.Flags()
	f.StringVar(&courseFlags.drugID, "drug-id", "", "Pre-fill from this catalog drug")
	f.StringVarP(&courseFlags.name, "name", "n", "", "Drug name")
	f.Float64Var(&courseFlags.dosage, "dosage", 0, "Dosage per intake")
	f.IntVar(&courseFlags.frequency, "frequency", 0, "Intakes per day")
	f.Float64Var(&courseFlags.interval, "interval", 0, "Hours between intakes")
	f.StringVar(&courseFlags.description, "description", "", "Free-form notes")
	f.StringVar(&courseFlags.start, "start", "", "Course start, YYYY-MM-DDTHH:MM (required)")
	f.StringVar(&courseFlags.end, "end", "", "Course end, YYYY-MM-DDTHH:MM (required)")
	f.StringVar(&courseFlags.startSchedule, "start-schedule", "", "Time of the first daily intake, HH:MM")
	f.BoolVar(&courseFlags.inactive, "inactive", false, "Create the course as inactive")
	_ = addCourseCmd.MarkFlagRequired("start")
	_ = addCourseCmd.MarkFlagRequired("end")
}
