package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fts/internal/deidentify/compartment"
	"fts/internal/deidentify/profile"
	"fts/internal/deidentify/replacement"
	"fts/internal/deidentify/scrape"
	"fts/internal/deidentify/tcaclient"
	"fts/internal/fhir"
	"fts/internal/platform/logger"
	"fts/internal/trustcenter/dateshift"
	"fts/internal/trustcenter/handler"
)

type scrapeOptions struct {
	bundlePath       string
	profilePath      string
	patientID        string
	identifierSystem string
	brokerURL        string
	pseudonymDomain  string
	saltDomain       string
	dateShiftDomain  string
	maxDateShift     time.Duration
	preserve         string
	verbose          bool
}

// scrapeResult is printed as JSON. It never holds a backend pseudonym.
type scrapeResult struct {
	PatientID             string            `json:"patientId"`
	IDs                   []string          `json:"ids"`
	DateTransportMappings map[string]string `json:"dateTransportMappings"`

	TransferID         string            `json:"transferId,omitempty"`
	TransportMapping   map[string]string `json:"transportMapping,omitempty"`
	PatientTransportID string            `json:"patientTransportId,omitempty"`
	DateShiftMillis    *int64            `json:"dateShiftMillis,omitempty"`
	ShiftedDates       map[string]string `json:"shiftedDates,omitempty"`
}

func scrapeCmd() *cobra.Command {
	opts := &scrapeOptions{}
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Harvest a patient bundle's identifiers and dates, optionally requesting transport ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runScrape(cmd, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.bundlePath, "bundle", "", "FHIR Bundle JSON file holding the patient's resources")
	f.StringVar(&opts.profilePath, "profile", "", "De-identification profile YAML (built-in profile when empty)")
	f.StringVar(&opts.patientID, "patient", "", "Patient resource id")
	f.StringVar(&opts.identifierSystem, "identifier-system", "", "Patient identifier system")
	f.StringVar(&opts.brokerURL, "broker", "", "Broker base URL; when set, transport ids are requested")
	f.StringVar(&opts.pseudonymDomain, "pseudonym-domain", "", "Backend domain for pseudonyms")
	f.StringVar(&opts.saltDomain, "salt-domain", "", "Backend domain for salts")
	f.StringVar(&opts.dateShiftDomain, "dateshift-domain", "", "Backend domain for date shift seeds")
	f.DurationVar(&opts.maxDateShift, "max-date-shift", 14*dateshift.Day, "Maximum date shift")
	f.StringVar(&opts.preserve, "preserve", "NONE", "Date shift preserve mode: NONE, DAYTIME or WEEKDAY")
	f.BoolVar(&opts.verbose, "verbose", false, "Log progress to stderr")
	_ = cmd.MarkFlagRequired("bundle")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

func runScrape(cmd *cobra.Command, opts *scrapeOptions) (*scrapeResult, error) {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), level, "text")

	raw, err := os.ReadFile(opts.bundlePath)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	bundle, err := fhir.ParseBundle(raw)
	if err != nil {
		return nil, err
	}

	p := profile.Default()
	if opts.profilePath != "" {
		if p, err = profile.Load(opts.profilePath); err != nil {
			return nil, err
		}
	}
	policy, err := compartment.DefaultPolicy()
	if err != nil {
		return nil, err
	}
	resolver, err := compartment.NewResolver(policy, compartment.WithLogger(log))
	if err != nil {
		return nil, err
	}
	provider, err := replacement.NewProvider(opts.patientID)
	if err != nil {
		return nil, err
	}
	scraper, err := scrape.New(p, resolver, provider, opts.patientID, scrape.WithLogger(log))
	if err != nil {
		return nil, err
	}

	data := scraper.Scrape(bundle.Resources())
	if !data.HasID(provider.Keys().IDKey(fhir.TypePatient, opts.patientID)) {
		log.Warn("patient resource not found in bundle", "patient_id", opts.patientID)
	}
	res := &scrapeResult{
		PatientID:             opts.patientID,
		IDs:                   data.IDs(),
		DateTransportMappings: data.DateTransportMappings(),
	}
	if opts.brokerURL == "" {
		return res, nil
	}

	client, err := tcaclient.New(opts.brokerURL)
	if err != nil {
		return nil, err
	}
	maxShift := opts.maxDateShift.Milliseconds()
	resp, err := client.TransportMapping(cmd.Context(), handler.TransportMappingRequest{
		PatientID:               opts.patientID,
		PatientIdentifierSystem: opts.identifierSystem,
		OriginalKeys:            res.IDs,
		Domains: handler.DomainsRequest{
			Pseudonym: opts.pseudonymDomain,
			Salt:      opts.saltDomain,
			DateShift: opts.dateShiftDomain,
		},
		MaxDateShift:      &maxShift,
		DateShiftPreserve: opts.preserve,
	})
	if err != nil {
		return nil, err
	}

	mappings := replacement.NewMappings(provider.Keys(), resp.TransportMapping, res.DateTransportMappings)
	res.TransferID = resp.TransferID
	res.TransportMapping = mappings.IDs()
	res.PatientTransportID, _ = mappings.IDReplacement(fhir.TypePatient, opts.patientID)
	res.DateShiftMillis = &resp.DateShiftValue

	shift := time.Duration(resp.DateShiftValue) * time.Millisecond
	res.ShiftedDates = make(map[string]string, len(res.DateTransportMappings))
	for tid, date := range mappings.Dates() {
		shifted, err := dateshift.ShiftDate(date, shift)
		if err != nil {
			log.Warn("date left unshifted", "tid", tid, "error", err)
			continue
		}
		res.ShiftedDates[tid] = shifted
	}

	log.Info("transport mapping received", "transfer_id", resp.TransferID, "keys", len(resp.TransportMapping))
	return res, nil
}
