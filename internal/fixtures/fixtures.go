// Package fixtures loads catalog and access-control seed data from YAML
// and applies it idempotently to the database.
package fixtures

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"stonksnote/internal/logger"
	"stonksnote/internal/models"
	"stonksnote/internal/money"
)

const batchSize = 100

// Broker is one catalog broker entry. Fee and rating values are decimal
// strings; empty values fall back to the file defaults.
type Broker struct {
	Name     string `yaml:"name"`
	Short    string `yaml:"short"`
	BrokerNo int    `yaml:"brokerno"`
	Country  string `yaml:"country"`
	Currency string `yaml:"currency"`
	BuyFees  string `yaml:"buyfees"`
	SellFees string `yaml:"sellfees"`
	Rating   string `yaml:"rating"`
	URL      string `yaml:"url"`
	IsOnline bool   `yaml:"is_online"`
}

// Equity is one listed instrument.
type Equity struct {
	Ticker   string `yaml:"ticker"`
	Name     string `yaml:"name"`
	Exchange string `yaml:"exchange"`
	Category string `yaml:"category"`
}

// Label is a taxonomy entry. Tier defaults to "exchange".
type Label struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Tier  string `yaml:"tier"`
	Sort  int    `yaml:"sort"`
}

// Group grants actions per resource. An action that names an entry of
// File.Actions expands to that whole list.
type Group struct {
	Name    string              `yaml:"name"`
	Summary string              `yaml:"summary"`
	Grants  map[string][]string `yaml:"grants"`
}

// Defaults fill blank broker fields.
type Defaults struct {
	Country  string `yaml:"country"`
	Currency string `yaml:"currency"`
	BuyFees  string `yaml:"buyfees"`
	SellFees string `yaml:"sellfees"`
	Exchange string `yaml:"exchange"`
}

// File is the top-level fixture document.
type File struct {
	Defaults  Defaults            `yaml:"defaults"`
	Taxonomy  []Label             `yaml:"taxonomy"`
	Brokers   []Broker            `yaml:"brokers"`
	Equities  []Equity            `yaml:"equities"`
	Actions   map[string][]string `yaml:"actions"`
	Resources map[string][]string `yaml:"resources"`
	Groups    []Group             `yaml:"groups"`
}

// Summary counts the rows Apply created. Existing rows are left alone.
type Summary struct {
	Taxonomy    int
	Brokers     int
	Equities    int
	Permissions int
	Groups      int
}

func (s Summary) String() string {
	return fmt.Sprintf("taxonomy=%d brokers=%d equities=%d permissions=%d groups=%d",
		s.Taxonomy, s.Brokers, s.Equities, s.Permissions, s.Groups)
}

// Load reads a fixture file from disk.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a fixture document. Unknown keys are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

func (f *File) validate() error {
	seen := map[int]bool{}
	for _, b := range f.Brokers {
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("broker %d has no name", b.BrokerNo)
		}
		if b.BrokerNo != 0 && seen[b.BrokerNo] {
			return fmt.Errorf("duplicate brokerno %d", b.BrokerNo)
		}
		seen[b.BrokerNo] = true
	}
	for _, e := range f.Equities {
		if strings.TrimSpace(e.Ticker) == "" {
			return fmt.Errorf("equity %q has no ticker", e.Name)
		}
	}
	for _, g := range f.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("group without a name")
		}
	}
	return nil
}

// PermissionCodes expands the resource table into "<resource>.<action>"
// codes, plus any code a group grants that the table does not list.
// The result is sorted.
func (f *File) PermissionCodes() []string {
	set := map[string]struct{}{}
	for resource, actions := range f.Resources {
		for _, action := range f.expand(actions) {
			set[resource+"."+action] = struct{}{}
		}
	}
	for _, g := range f.Groups {
		for _, code := range f.GroupCodes(g) {
			set[code] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// GroupCodes returns the sorted permission codes a group grants.
func (f *File) GroupCodes(g Group) []string {
	set := map[string]struct{}{}
	for resource, actions := range g.Grants {
		for _, action := range f.expand(actions) {
			set[resource+"."+action] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func (f *File) expand(actions []string) []string {
	var out []string
	for _, a := range actions {
		if preset, ok := f.Actions[a]; ok {
			out = append(out, preset...)
			continue
		}
		out = append(out, a)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Apply inserts everything in the file that is not already present, in a
// single transaction. Group permissions are replaced with the file's grants.
func Apply(db *gorm.DB, f *File) (Summary, error) {
	var sum Summary
	err := db.Transaction(func(tx *gorm.DB) error {
		exchanges, err := applyTaxonomy(tx, f, &sum)
		if err != nil {
			return err
		}
		if err := applyBrokers(tx, f, &sum); err != nil {
			return err
		}
		if err := applyEquities(tx, f, exchanges, &sum); err != nil {
			return err
		}
		perms, err := applyPermissions(tx, f, &sum)
		if err != nil {
			return err
		}
		return applyGroups(tx, f, perms, &sum)
	})
	if err != nil {
		return Summary{}, err
	}
	logger.Get().Infow("Fixtures applied", "summary", sum.String())
	return sum, nil
}

// applyTaxonomy creates the listed labels and any exchange an equity
// refers to, and returns exchange IDs by name.
func applyTaxonomy(tx *gorm.DB, f *File, sum *Summary) (map[string]string, error) {
	labels := append([]Label{}, f.Taxonomy...)
	if f.Defaults.Exchange != "" {
		labels = append(labels, Label{Name: f.Defaults.Exchange})
	}
	for _, e := range f.Equities {
		if e.Exchange != "" {
			labels = append(labels, Label{Name: e.Exchange})
		}
	}

	exchanges := map[string]string{}
	done := map[string]bool{}
	for _, l := range labels {
		tier := firstNonEmpty(l.Tier, models.TierExchange)
		name := strings.TrimSpace(l.Name)
		if tier == models.TierExchange {
			name = strings.ToUpper(name)
		}
		if name == "" || done[tier+"/"+name] {
			continue
		}
		done[tier+"/"+name] = true

		var tax models.Taxonomy
		res := tx.Where("name = ? AND tier = ?", name, tier).Limit(1).Find(&tax)
		if res.Error != nil {
			return nil, fmt.Errorf("taxonomy %s/%s: %w", tier, name, res.Error)
		}
		if res.RowsAffected == 0 {
			tax = models.Taxonomy{Name: name, Tier: tier, Label: firstNonEmpty(l.Label, name), Sort: l.Sort, IsGlobal: true}
			if tax.Sort == 0 {
				tax.Sort = 100
			}
			if err := tx.Create(&tax).Error; err != nil {
				return nil, fmt.Errorf("taxonomy %s/%s: %w", tier, name, err)
			}
			sum.Taxonomy++
		}
		if tier == models.TierExchange {
			exchanges[name] = tax.ID
		}
	}
	return exchanges, nil
}

func parseDecimal(field, raw, fallback string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		raw = fallback
	}
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func applyBrokers(tx *gorm.DB, f *File, sum *Summary) error {
	var fresh []models.Broker
	for _, b := range f.Brokers {
		var count int64
		q := tx.Model(&models.Broker{})
		if b.BrokerNo != 0 {
			q = q.Where("broker_no = ?", b.BrokerNo)
		} else {
			q = q.Where("name = ?", b.Name)
		}
		if err := q.Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		buy, err := parseDecimal(b.Name+" buyfees", b.BuyFees, f.Defaults.BuyFees)
		if err != nil {
			return err
		}
		sell, err := parseDecimal(b.Name+" sellfees", b.SellFees, f.Defaults.SellFees)
		if err != nil {
			return err
		}
		if !money.ValidFeeRate(buy) || !money.ValidFeeRate(sell) {
			return fmt.Errorf("broker %s: fee rates must be at least 0 and below 1", b.Name)
		}
		rating, err := parseDecimal(b.Name+" rating", b.Rating, "")
		if err != nil {
			return err
		}

		fresh = append(fresh, models.Broker{
			Name:     strings.TrimSpace(b.Name),
			Short:    b.Short,
			BrokerNo: b.BrokerNo,
			Rating:   rating,
			URL:      b.URL,
			Country:  strings.ToUpper(firstNonEmpty(b.Country, f.Defaults.Country)),
			BuyFees:  buy,
			SellFees: sell,
			Currency: strings.ToUpper(firstNonEmpty(b.Currency, f.Defaults.Currency, "PHP")),
			IsOnline: b.IsOnline,
			IsActive: true,
		})
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(&fresh, batchSize).Error; err != nil {
		return fmt.Errorf("brokers: %w", err)
	}
	sum.Brokers += len(fresh)
	return nil
}

func applyEquities(tx *gorm.DB, f *File, exchanges map[string]string, sum *Summary) error {
	var fresh []models.Equity
	for _, e := range f.Equities {
		ticker := strings.ToUpper(strings.TrimSpace(e.Ticker))
		exchangeID, ok := exchanges[strings.ToUpper(strings.TrimSpace(firstNonEmpty(e.Exchange, f.Defaults.Exchange)))]
		if !ok {
			return fmt.Errorf("equity %s has no exchange", ticker)
		}

		var count int64
		err := tx.Model(&models.Equity{}).
			Where("ticker = ? AND exchange_id = ?", ticker, exchangeID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		fresh = append(fresh, models.Equity{
			Ticker:     ticker,
			Name:       e.Name,
			ExchangeID: exchangeID,
			Category:   firstNonEmpty(e.Category, "stock"),
			Status:     models.EquityActive,
		})
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(&fresh, batchSize).Error; err != nil {
		return fmt.Errorf("equities: %w", err)
	}
	sum.Equities += len(fresh)
	return nil
}

func applyPermissions(tx *gorm.DB, f *File, sum *Summary) (map[string]models.Permission, error) {
	codes := f.PermissionCodes()

	var existing []models.Permission
	if err := tx.Where("code IN ?", codes).Find(&existing).Error; err != nil {
		return nil, err
	}
	byCode := make(map[string]models.Permission, len(codes))
	for _, p := range existing {
		byCode[p.Code] = p
	}

	var fresh []models.Permission
	for _, code := range codes {
		if _, ok := byCode[code]; ok {
			continue
		}
		fresh = append(fresh, models.Permission{Code: code, Name: permissionName(code)})
	}
	if len(fresh) > 0 {
		if err := tx.CreateInBatches(&fresh, batchSize).Error; err != nil {
			return nil, fmt.Errorf("permissions: %w", err)
		}
		sum.Permissions += len(fresh)
		for _, p := range fresh {
			byCode[p.Code] = p
		}
	}
	return byCode, nil
}

// permissionName turns "broker.hard_delete" into "Can hard delete broker".
func permissionName(code string) string {
	resource, action, ok := strings.Cut(code, ".")
	if !ok {
		return code
	}
	return "Can " + strings.ReplaceAll(action, "_", " ") + " " + resource
}

func applyGroups(tx *gorm.DB, f *File, perms map[string]models.Permission, sum *Summary) error {
	for _, g := range f.Groups {
		var group models.Group
		res := tx.Where("name = ?", g.Name).Limit(1).Find(&group)
		if res.Error != nil {
			return fmt.Errorf("group %s: %w", g.Name, res.Error)
		}
		if res.RowsAffected == 0 {
			group = models.Group{Name: g.Name, Summary: g.Summary}
			if err := tx.Create(&group).Error; err != nil {
				return fmt.Errorf("group %s: %w", g.Name, err)
			}
			sum.Groups++
		}

		codes := f.GroupCodes(g)
		granted := make([]models.Permission, 0, len(codes))
		for _, code := range codes {
			granted = append(granted, perms[code])
		}
		if err := tx.Model(&group).Association("Permissions").Replace(granted); err != nil {
			return fmt.Errorf("group %s permissions: %w", g.Name, err)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
