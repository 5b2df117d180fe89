package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/smallbiznis/givelane/internal/campaign/domain"
	"github.com/smallbiznis/givelane/internal/config"
	donordomain "github.com/smallbiznis/givelane/internal/donor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultDonorName    = "Demo Donor"
	defaultDonorEmail   = "donor@givelane.local"
	defaultCampaignName = "General Fund"
	defaultCampaignGoal = 100000000
	defaultCampaignCcy  = "INR"
)

// Module seeds demo data on startup when SEED_DEMO_DATA is set.
var Module = fx.Module("seed",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if !cfg.SeedDemoData {
			return nil
		}
		demo, err := EnsureDemoData(conn, node)
		if err != nil {
			return err
		}
		log.Info("demo data ready",
			zap.String("donor_id", demo.DonorID.String()),
			zap.String("campaign_id", demo.CampaignID.String()),
		)
		return nil
	}),
)

// Demo identifies the seeded donor and campaign.
type Demo struct {
	DonorID    snowflake.ID
	CampaignID snowflake.ID
}

// EnsureDemoData inserts a donor and an active campaign unless they already
// exist. It is safe to call on every startup.
func EnsureDemoData(db *gorm.DB, node *snowflake.Node) (Demo, error) {
	if db == nil {
		return Demo{}, errors.New("seed database handle is required")
	}
	if node == nil {
		return Demo{}, errors.New("seed id generator is required")
	}

	ctx := context.Background()
	var demo Demo
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		donor, err := ensureDonorTx(ctx, tx, node)
		if err != nil {
			return err
		}
		campaign, err := ensureCampaignTx(ctx, tx, node)
		if err != nil {
			return err
		}
		demo = Demo{DonorID: donor.ID, CampaignID: campaign.ID}
		return nil
	})
	return demo, err
}

func ensureDonorTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (donordomain.Donor, error) {
	var donor donordomain.Donor
	err := tx.WithContext(ctx).Where("email = ?", strings.ToLower(defaultDonorEmail)).First(&donor).Error
	if err == nil {
		return donor, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return donor, err
	}
	now := time.Now().UTC()
	donor = donordomain.Donor{
		ID:        node.Generate(),
		Name:      defaultDonorName,
		Email:     strings.ToLower(defaultDonorEmail),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&donor).Error; err != nil {
		return donor, err
	}
	return donor, nil
}

func ensureCampaignTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (campaigndomain.Campaign, error) {
	var campaign campaigndomain.Campaign
	err := tx.WithContext(ctx).Where("name = ?", defaultCampaignName).First(&campaign).Error
	if err == nil {
		return campaign, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return campaign, err
	}
	now := time.Now().UTC()
	campaign = campaigndomain.Campaign{
		ID:         node.Generate(),
		Name:       defaultCampaignName,
		Status:     campaigndomain.StatusActive,
		Currency:   defaultCampaignCcy,
		GoalAmount: defaultCampaignGoal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(&campaign).Error; err != nil {
		return campaign, err
	}
	return campaign, nil
}
