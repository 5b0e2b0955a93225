package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marcel-gle/gb-qr-tracker/app/services"
	"github.com/marcel-gle/gb-qr-tracker/models"
	"github.com/marcel-gle/gb-qr-tracker/repository"
	"github.com/marcel-gle/gb-qr-tracker/utils"
)

// ImportJob is one import run's configuration.
type ImportJob struct {
	InputFile  string `validate:"required"`
	OwnerID    string `validate:"required"`
	BaseURL    string `validate:"required,url"`
	CampaignID string `validate:"required"`

	CampaignCode       string
	CampaignName       string
	DestinationDefault string

	// Limit caps the number of processed rows; 0 means all. Rows beyond the
	// limit stay in the output file with an empty tracking link.
	Limit int

	// SkipExisting pre-scans the link store and skips link creation for rows
	// whose id already exists, instead of allocating a suffixed variant.
	SkipExisting bool

	// DeriveIDFromIdentity lets company-owned email domains contribute link
	// id bases.
	DeriveIDFromIdentity bool

	Geocode bool
}

// ImportFlow runs one bulk import from file to store.
type ImportFlow interface {
	Run(ctx context.Context, job *ImportJob) (*ImportReport, error)
}

type ImportFlowImpl struct {
	db         *gorm.DB
	campaigns  CampaignFlow
	businesses repository.BusinessRepository
	targets    repository.TargetRepository
	links      repository.LinkRepository
	blacklist  repository.BlacklistRepository
	geocoder   services.Geocoder
	validator  *validator.Validate
}

func NewImportFlow(
	db *gorm.DB,
	campaigns CampaignFlow,
	businesses repository.BusinessRepository,
	targets repository.TargetRepository,
	links repository.LinkRepository,
	blacklist repository.BlacklistRepository,
	geocoder services.Geocoder,
) ImportFlow {
	return &ImportFlowImpl{
		db:         db,
		campaigns:  campaigns,
		businesses: businesses,
		targets:    targets,
		links:      links,
		blacklist:  blacklist,
		geocoder:   geocoder,
		validator:  validator.New(),
	}
}

// rowState tracks one input row from parse to terminal state. Exactly one of
// linked/excluded/errored/blacklisted is reached per processed row.
type rowState struct {
	index int
	row   map[string]string
	res   *ColumnResolver

	inLimit     bool
	blacklisted bool

	businessName string
	businessID   string
	dest         string
	base         string
	finalID      string
	templateKey  string
	templateRaw  string

	linked      bool
	skipped     bool
	excluded    bool
	linkRetried bool
	err         error
}

func (f *ImportFlowImpl) Run(ctx context.Context, job *ImportJob) (*ImportReport, error) {
	start := time.Now()
	if err := f.validator.Struct(job); err != nil {
		return nil, fmt.Errorf("invalid import job: %w", err)
	}

	file, err := ReadRowFile(job.InputFile)
	if err != nil {
		return nil, err
	}
	if len(file.Rows) == 0 {
		return nil, fmt.Errorf("%s: %w", job.InputFile, ErrNoDataRows)
	}
	if _, ok := file.Resolver.Key(colBusinessName...); !ok {
		if _, idOK := file.Resolver.Key(colExplicitID...); !idOK {
			return nil, fmt.Errorf("%s: %w", job.InputFile, ErrMissingNameColumn)
		}
	}

	campaign, created, err := f.campaigns.GetOrCreate(ctx, job.OwnerID, job.CampaignID, job.CampaignName, job.CampaignCode)
	if err != nil {
		return nil, err
	}

	report, err := f.runRows(ctx, job, campaign, file)
	if err != nil {
		// Fatal mid-run failure: compensate before re-raising so a retried
		// import starts clean. Only a campaign this run created is torn
		// down; a pre-existing campaign keeps its earlier artifacts.
		if created {
			targets, links, cleanupErr := f.campaigns.Cleanup(ctx, campaign.ID)
			if cleanupErr != nil {
				log.Printf("[cleanup] failed for campaign %s: %v", campaign.ID, cleanupErr)
				return nil, err
			}
			return nil, &FatalError{Err: err, DeletedTargets: targets, DeletedLinks: links}
		}
		return nil, err
	}

	importRunDuration.Observe(time.Since(start).Seconds())
	return report, nil
}

func (f *ImportFlowImpl) runRows(ctx context.Context, job *ImportJob, campaign *models.Campaign, file *RowFile) (*ImportReport, error) {
	report := &ImportReport{
		CampaignID: campaign.ID,
		TotalRows:  len(file.Rows),
	}

	blacklist, err := LoadBlacklist(ctx, f.blacklist, job.OwnerID)
	if err != nil {
		return nil, err
	}
	if blacklist.Size() > 0 {
		log.Printf("[blacklist] %d suppressed businesses for owner %s", blacklist.Size(), job.OwnerID)
	}

	states := f.precompute(job, campaign, file, blacklist, report)

	allocator := NewIDAllocator(f.links)
	bases := make([]string, 0, len(states))
	for _, st := range states {
		if st.inLimit && !st.blacklisted && st.dest != "" {
			bases = append(bases, st.base)
		}
	}
	if err := allocator.Preload(ctx, bases); err != nil {
		return nil, err
	}

	writer := NewBatchWriter(f.db, utils.MaxBatchOps)
	geoCache := make(map[string]*models.Coordinate)

	for _, st := range states {
		if !st.inLimit || st.blacklisted {
			continue
		}
		if err := f.queueRow(ctx, job, campaign, writer, allocator, st, geoCache, report); err != nil {
			return nil, err
		}
	}
	if err := writer.Flush(ctx); err != nil {
		return nil, err
	}

	f.finalizeRows(job, states, report)

	if err := f.incrementTotals(ctx, campaign.ID, report); err != nil {
		return nil, err
	}

	outRows := make([]map[string]string, 0, len(states))
	for _, st := range states {
		if st.blacklisted {
			continue
		}
		outRows = append(outRows, st.row)
	}
	outPath, err := file.WriteWithLinks(outRows)
	if err != nil {
		return nil, err
	}
	report.OutputFile = outPath
	report.BatchCommits = writer.Commits()
	importBatchCommitsTotal.Add(float64(writer.Commits()))

	log.Printf("done: links=%d targets=%d skipped=%d excluded=%d blacklisted=%d errors=%d commits=%d",
		report.LinksCreated, report.TargetsCreated, report.LinksSkipped,
		report.ExcludedNoDest, report.BlacklistedCount, report.ErrorCount, report.BatchCommits)
	return report, nil
}

// precompute derives per-row identity and destination before any write, so
// the allocator sees every base up front.
func (f *ImportFlowImpl) precompute(job *ImportJob, campaign *models.Campaign, file *RowFile, blacklist *BlacklistFilter, report *ImportReport) []*rowState {
	res := file.Resolver
	states := make([]*rowState, 0, len(file.Rows))
	for i, row := range file.Rows {
		st := &rowState{
			index:   i,
			row:     row,
			res:     res,
			inLimit: job.Limit <= 0 || i < job.Limit,
		}
		states = append(states, st)
		if !st.inLimit {
			continue
		}

		st.businessName = res.Get(row, colBusinessName...)
		postcode := res.Get(row, colPostcode...)
		st.businessID = MakeBusinessID(st.businessName, postcode)

		if blacklist.IsBlacklisted(st.businessID) {
			st.blacklisted = true
			report.BlacklistedCount++
			report.Blacklisted = append(report.Blacklisted, BlacklistedRow{
				RowNumber:    i + 1,
				BusinessName: st.businessName,
				Postcode:     postcode,
				City:         res.Get(row, colCity...),
			})
			importRowsTotal.WithLabelValues("blacklisted").Inc()
			continue
		}

		st.dest = res.Get(row, colDestination...)
		if st.dest == "" {
			st.dest = job.DestinationDefault
		}
		if key, ok := res.Key(colTemplate...); ok {
			st.templateKey = key
			st.templateRaw = strings.TrimSpace(row[key])
		}
		st.base = BaseID(
			res.Get(row, colExplicitID...),
			res.Get(row, colEmail...),
			st.businessName,
			campaign.CodeOrEmpty(),
			i,
			job.DeriveIDFromIdentity,
		)
	}
	return states
}

// queueRow enqueues all store mutations for one row as a single batch unit so
// a flush boundary never splits a row. Row-local failures are recorded on the
// state and do not abort the batch.
func (f *ImportFlowImpl) queueRow(ctx context.Context, job *ImportJob, campaign *models.Campaign,
	writer *BatchWriter, allocator *IDAllocator, st *rowState,
	geoCache map[string]*models.Coordinate, report *ImportReport,
) error {
	weight := 3 // business merge + owner union + target
	createLink := false

	switch {
	case st.dest == "":
		st.excluded = true
	case job.SkipExisting:
		// Claim ids in row order so same-base rows line up with the ids an
		// earlier run gave them; only ids beyond the stored ones are created.
		id, existed, err := allocator.ClaimNext(st.base)
		if err != nil {
			st.err = err
			return nil
		}
		st.finalID = id
		if existed {
			st.skipped = true
		} else {
			createLink = true
			weight++
		}
	default:
		id, err := allocator.Allocate(st.base)
		if err != nil {
			st.err = err
			return nil
		}
		st.finalID = id
		createLink = true
		weight++
	}

	coordinate := f.maybeGeocode(ctx, job, st, geoCache, report)
	business := f.businessFromRow(st, job.OwnerID, coordinate)
	snapshot := f.snapshotFromRow(st)

	return writer.Queue(ctx, weight, func(txCtx context.Context) error {
		if err := f.businesses.UpsertMerge(txCtx, business); err != nil {
			st.err = err
			return nil
		}

		// ID assigned up front so the link row can reference the target
		// before either insert lands.
		target := &models.Target{
			ID:         uuid.New().String(),
			CampaignID: campaign.ID,
			BusinessID: st.businessID,
			ImportRow:  models.RowData(st.row),
			DedupeKey:  f.dedupeKey(st),
		}

		if createLink {
			link := &models.Link{
				CampaignID:  campaign.ID,
				BusinessID:  st.businessID,
				OwnerID:     job.OwnerID,
				Destination: st.dest,
				Active:      true,

				SnapshotMailing: snapshot,
			}
			if st.templateRaw != "" {
				link.TemplateID = utils.ToPtr(TemplateWithQRSuffix(st.templateRaw))
			}

			finalID, err := CreateWithRetry(txCtx, st.finalID, utils.LinkCreateMaxAttempts,
				func(ctx context.Context, id string) error {
					link.ID = id
					link.TargetID = target.ID
					return f.links.Create(ctx, link)
				},
				func(ctx context.Context) (string, error) {
					st.linkRetried = true
					importLinkCollisionsTotal.Inc()
					return allocator.Reallocate(ctx, st.base)
				},
			)
			if err != nil {
				st.err = err
			} else {
				st.finalID = finalID
				st.linked = true
			}
		}

		switch {
		case st.linked || st.skipped:
			target.Status = models.TargetStatusLinked
			target.LinkID = utils.ToPtr(st.finalID)
		case st.excluded:
			target.Status = models.TargetStatusExcluded
			target.ReasonExcluded = utils.ToPtr("No destination")
		default:
			// Link create failed; the row keeps its audit record without a
			// link reference.
			target.Status = models.TargetStatusValidated
		}

		if err := f.targets.Save(txCtx, target); err != nil {
			if st.err == nil {
				st.err = err
			}
			return nil
		}
		report.TargetsCreated++
		return nil
	})
}

// finalizeRows writes tracking links and adjusted template names back into
// the output rows and folds terminal states into the report.
func (f *ImportFlowImpl) finalizeRows(job *ImportJob, states []*rowState, report *ImportReport) {
	for _, st := range states {
		if st.blacklisted {
			continue
		}
		st.row[TrackingLinkColumn] = ""
		if !st.inLimit {
			continue
		}
		report.RowsProcessed++

		if st.templateRaw != "" {
			adjusted := TemplateWithQRSuffix(st.templateRaw)
			if st.templateKey != "" {
				st.row[st.templateKey] = adjusted
			} else {
				st.row["Template"] = adjusted
			}
		}

		switch {
		case st.err != nil:
			report.ErrorCount++
			report.Errors = append(report.Errors, RowError{
				RowNumber:    st.index + 1,
				BusinessName: st.businessName,
				Error:        st.err.Error(),
			})
			importRowsTotal.WithLabelValues("errored").Inc()
		case st.linked || st.skipped:
			st.row[TrackingLinkColumn] = BuildTrackingLink(job.BaseURL, st.finalID)
			if st.linked {
				report.LinksCreated++
			} else {
				report.LinksSkipped++
			}
			importRowsTotal.WithLabelValues("linked").Inc()
		case st.excluded:
			report.ExcludedNoDest++
			importRowsTotal.WithLabelValues("excluded").Inc()
		}
	}
}

func (f *ImportFlowImpl) incrementTotals(ctx context.Context, campaignID string, report *ImportReport) error {
	return f.campaigns.IncrementTotals(ctx, campaignID, int64(report.TargetsCreated), int64(report.LinksCreated))
}

func (f *ImportFlowImpl) maybeGeocode(ctx context.Context, job *ImportJob, st *rowState,
	cache map[string]*models.Coordinate, report *ImportReport,
) *models.Coordinate {
	if !job.Geocode || f.geocoder == nil {
		return nil
	}
	res := st.res
	addr := ComposeFullAddress(
		res.Get(st.row, colStreet...),
		res.Get(st.row, colHouseNumber...),
		res.Get(st.row, colPostcode...),
		res.Get(st.row, colCity...),
		"Germany",
	)
	if addr == "" {
		return nil
	}
	if coord, hit := cache[addr]; hit {
		return coord
	}
	coord, err := f.geocoder.Geocode(ctx, addr)
	if err != nil || coord == nil {
		if err != nil {
			log.Printf("[warn] geocoding failed for %q: %v", addr, err)
		}
		report.GeocodeFailedCount++
		importGeocodeTotal.WithLabelValues("failed").Inc()
		cache[addr] = nil
		return nil
	}
	report.GeocodedCount++
	importGeocodeTotal.WithLabelValues("ok").Inc()
	cache[addr] = coord
	return coord
}

func (f *ImportFlowImpl) businessFromRow(st *rowState, ownerID string, coordinate *models.Coordinate) *models.Business {
	res := st.res
	row := st.row

	street := res.Get(row, colStreet...)
	houseNo := res.Get(row, colHouseNumber...)
	postcode := res.Get(row, colPostcode...)
	city := res.Get(row, colCity...)

	contactName := strings.TrimSpace(res.Get(row, colFirstName...) + " " + res.Get(row, colLastName...))
	phone := strings.TrimSpace(res.Get(row, colPhonePrefix...) + " " + res.Get(row, colPhone...))

	b := &models.Business{
		ID:         st.businessID,
		OwnerIDs:   []string{ownerID},
		Coordinate: coordinate,
		UpdatedAt:  utils.UTCNow(),
	}
	setPtr(&b.BusinessName, st.businessName)
	setPtr(&b.Street, street)
	setPtr(&b.HouseNumber, houseNo)
	setPtr(&b.Postcode, postcode)
	setPtr(&b.City, city)
	setPtr(&b.Name, contactName)
	setPtr(&b.Phone, phone)
	setPtr(&b.Email, res.Get(row, colEmail...))
	setPtr(&b.Salutation, res.Get(row, colSalutation...))
	setPtr(&b.Address, ComposeFullAddress(street, houseNo, postcode, city, "Germany"))
	return b
}

func (f *ImportFlowImpl) snapshotFromRow(st *rowState) models.SnapshotMailing {
	res := st.res
	row := st.row

	street := res.Get(row, colStreet...)
	houseNo := res.Get(row, colHouseNumber...)
	country := res.Get(row, colCountry...)
	if country == "" {
		country = utils.DefaultCountry
	}

	var addressLines []string
	if line1 := strings.TrimSpace(street + " " + houseNo); line1 != "" {
		addressLines = append(addressLines, line1)
	}

	return models.SnapshotMailing{
		BusinessName:  st.businessName,
		RecipientName: strings.TrimSpace(res.Get(row, colFirstName...) + " " + res.Get(row, colLastName...)),
		AddressLines:  addressLines,
		Postcode:      res.Get(row, colPostcode...),
		City:          res.Get(row, colCity...),
		Country:       country,
	}
}

func (f *ImportFlowImpl) dedupeKey(st *rowState) string {
	res := st.res
	row := st.row
	return DedupeKey(
		st.businessName,
		res.Get(row, colStreet...),
		res.Get(row, colHouseNumber...),
		res.Get(row, colPostcode...),
		res.Get(row, colCity...),
	)
}

func setPtr(dst **string, v string) {
	if v != "" {
		*dst = utils.ToPtr(v)
	}
}
