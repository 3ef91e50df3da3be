package models

import (
	"fmt"

	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Source tables are loaded by the ingestion job; the service only reads
// them. None has a primary key because duplicates are part of what gets
// checked.

type Application struct {
	SkIdCurr         *int64              `gorm:"column:SK_ID_CURR;index" json:"sk_id_curr"`
	Target           *int64              `gorm:"column:TARGET" json:"target"`
	NameContractType *string             `gorm:"column:NAME_CONTRACT_TYPE;size:50" json:"name_contract_type"`
	CodeGender       *string             `gorm:"column:CODE_GENDER;size:10" json:"code_gender"`
	FlagOwnCar       *string             `gorm:"column:FLAG_OWN_CAR;size:1" json:"flag_own_car"`
	FlagOwnRealty    *string             `gorm:"column:FLAG_OWN_REALTY;size:1" json:"flag_own_realty"`
	CntChildren      *int64              `gorm:"column:CNT_CHILDREN" json:"cnt_children"`
	AmtIncomeTotal   decimal.NullDecimal `gorm:"column:AMT_INCOME_TOTAL;type:decimal(20,4)" json:"amt_income_total"`
	AmtCredit        decimal.NullDecimal `gorm:"column:AMT_CREDIT;type:decimal(20,4)" json:"amt_credit"`
	AmtAnnuity       decimal.NullDecimal `gorm:"column:AMT_ANNUITY;type:decimal(20,4)" json:"amt_annuity"`
	DaysBirth        *int64              `gorm:"column:DAYS_BIRTH" json:"days_birth"`
	DaysEmployed     *int64              `gorm:"column:DAYS_EMPLOYED" json:"days_employed"`
	OccupationType   *string             `gorm:"column:OCCUPATION_TYPE;size:100" json:"occupation_type"`
	OrganizationType *string             `gorm:"column:ORGANIZATION_TYPE;size:100" json:"organization_type"`
	FlagWorkPhone    *int64              `gorm:"column:FLAG_WORK_PHONE" json:"flag_work_phone"`
	FlagPhone        *int64              `gorm:"column:FLAG_PHONE" json:"flag_phone"`
	FlagEmail        *int64              `gorm:"column:FLAG_EMAIL" json:"flag_email"`
}

func (Application) TableName() string { return dqcheck.TableApplication }

func (a Application) Cells() []dqcheck.Cell {
	return []dqcheck.Cell{
		{Column: "SK_ID_CURR", Value: dqcheck.NullableInt(a.SkIdCurr)},
		{Column: "TARGET", Value: dqcheck.NullableInt(a.Target)},
		{Column: "NAME_CONTRACT_TYPE", Value: dqcheck.NullableText(a.NameContractType)},
		{Column: "CODE_GENDER", Value: dqcheck.NullableText(a.CodeGender)},
		{Column: "FLAG_OWN_CAR", Value: dqcheck.NullableText(a.FlagOwnCar)},
		{Column: "FLAG_OWN_REALTY", Value: dqcheck.NullableText(a.FlagOwnRealty)},
		{Column: "CNT_CHILDREN", Value: dqcheck.NullableInt(a.CntChildren)},
		{Column: "AMT_INCOME_TOTAL", Value: dqcheck.NullableDecimal(a.AmtIncomeTotal)},
		{Column: "AMT_CREDIT", Value: dqcheck.NullableDecimal(a.AmtCredit)},
		{Column: "AMT_ANNUITY", Value: dqcheck.NullableDecimal(a.AmtAnnuity)},
		{Column: "DAYS_BIRTH", Value: dqcheck.NullableInt(a.DaysBirth)},
		{Column: "DAYS_EMPLOYED", Value: dqcheck.NullableInt(a.DaysEmployed)},
		{Column: "OCCUPATION_TYPE", Value: dqcheck.NullableText(a.OccupationType)},
		{Column: "ORGANIZATION_TYPE", Value: dqcheck.NullableText(a.OrganizationType)},
		{Column: "FLAG_WORK_PHONE", Value: dqcheck.NullableInt(a.FlagWorkPhone)},
		{Column: "FLAG_PHONE", Value: dqcheck.NullableInt(a.FlagPhone)},
		{Column: "FLAG_EMAIL", Value: dqcheck.NullableInt(a.FlagEmail)},
	}
}

type Bureau struct {
	SkIdCurr            *int64              `gorm:"column:SK_ID_CURR;index" json:"sk_id_curr"`
	SkIdBureau          *int64              `gorm:"column:SK_ID_BUREAU;index" json:"sk_id_bureau"`
	CreditActive        *string             `gorm:"column:CREDIT_ACTIVE;size:20" json:"credit_active"`
	CreditCurrency      *string             `gorm:"column:CREDIT_CURRENCY;size:20" json:"credit_currency"`
	CreditType          *string             `gorm:"column:CREDIT_TYPE;size:100" json:"credit_type"`
	DaysCredit          *int64              `gorm:"column:DAYS_CREDIT" json:"days_credit"`
	CreditDayOverdue    *int64              `gorm:"column:CREDIT_DAY_OVERDUE" json:"credit_day_overdue"`
	DaysCreditEnddate   decimal.NullDecimal `gorm:"column:DAYS_CREDIT_ENDDATE;type:decimal(20,4)" json:"days_credit_enddate"`
	DaysEnddateFact     decimal.NullDecimal `gorm:"column:DAYS_ENDDATE_FACT;type:decimal(20,4)" json:"days_enddate_fact"`
	AmtCreditMaxOverdue decimal.NullDecimal `gorm:"column:AMT_CREDIT_MAX_OVERDUE;type:decimal(20,4)" json:"amt_credit_max_overdue"`
	CntCreditProlong    *int64              `gorm:"column:CNT_CREDIT_PROLONG" json:"cnt_credit_prolong"`
	AmtCreditSum        decimal.NullDecimal `gorm:"column:AMT_CREDIT_SUM;type:decimal(20,4)" json:"amt_credit_sum"`
	AmtCreditSumDebt    decimal.NullDecimal `gorm:"column:AMT_CREDIT_SUM_DEBT;type:decimal(20,4)" json:"amt_credit_sum_debt"`
	AmtCreditSumLimit   decimal.NullDecimal `gorm:"column:AMT_CREDIT_SUM_LIMIT;type:decimal(20,4)" json:"amt_credit_sum_limit"`
	AmtCreditSumOverdue decimal.NullDecimal `gorm:"column:AMT_CREDIT_SUM_OVERDUE;type:decimal(20,4)" json:"amt_credit_sum_overdue"`
	DaysCreditUpdate    *int64              `gorm:"column:DAYS_CREDIT_UPDATE" json:"days_credit_update"`
	AmtAnnuity          decimal.NullDecimal `gorm:"column:AMT_ANNUITY;type:decimal(20,4)" json:"amt_annuity"`
}

func (Bureau) TableName() string { return dqcheck.TableBureau }

func (b Bureau) Cells() []dqcheck.Cell {
	return []dqcheck.Cell{
		{Column: "SK_ID_CURR", Value: dqcheck.NullableInt(b.SkIdCurr)},
		{Column: "SK_ID_BUREAU", Value: dqcheck.NullableInt(b.SkIdBureau)},
		{Column: "CREDIT_ACTIVE", Value: dqcheck.NullableText(b.CreditActive)},
		{Column: "CREDIT_CURRENCY", Value: dqcheck.NullableText(b.CreditCurrency)},
		{Column: "CREDIT_TYPE", Value: dqcheck.NullableText(b.CreditType)},
		{Column: "DAYS_CREDIT", Value: dqcheck.NullableInt(b.DaysCredit)},
		{Column: "CREDIT_DAY_OVERDUE", Value: dqcheck.NullableInt(b.CreditDayOverdue)},
		{Column: "DAYS_CREDIT_ENDDATE", Value: dqcheck.NullableDecimal(b.DaysCreditEnddate)},
		{Column: "DAYS_ENDDATE_FACT", Value: dqcheck.NullableDecimal(b.DaysEnddateFact)},
		{Column: "AMT_CREDIT_MAX_OVERDUE", Value: dqcheck.NullableDecimal(b.AmtCreditMaxOverdue)},
		{Column: "CNT_CREDIT_PROLONG", Value: dqcheck.NullableInt(b.CntCreditProlong)},
		{Column: "AMT_CREDIT_SUM", Value: dqcheck.NullableDecimal(b.AmtCreditSum)},
		{Column: "AMT_CREDIT_SUM_DEBT", Value: dqcheck.NullableDecimal(b.AmtCreditSumDebt)},
		{Column: "AMT_CREDIT_SUM_LIMIT", Value: dqcheck.NullableDecimal(b.AmtCreditSumLimit)},
		{Column: "AMT_CREDIT_SUM_OVERDUE", Value: dqcheck.NullableDecimal(b.AmtCreditSumOverdue)},
		{Column: "DAYS_CREDIT_UPDATE", Value: dqcheck.NullableInt(b.DaysCreditUpdate)},
		{Column: "AMT_ANNUITY", Value: dqcheck.NullableDecimal(b.AmtAnnuity)},
	}
}

type PreviousApplication struct {
	SkIdPrev           *int64              `gorm:"column:SK_ID_PREV;index" json:"sk_id_prev"`
	SkIdCurr           *int64              `gorm:"column:SK_ID_CURR;index" json:"sk_id_curr"`
	NameContractType   *string             `gorm:"column:NAME_CONTRACT_TYPE;size:50" json:"name_contract_type"`
	AmtAnnuity         decimal.NullDecimal `gorm:"column:AMT_ANNUITY;type:decimal(20,4)" json:"amt_annuity"`
	AmtApplication     decimal.NullDecimal `gorm:"column:AMT_APPLICATION;type:decimal(20,4)" json:"amt_application"`
	AmtCredit          decimal.NullDecimal `gorm:"column:AMT_CREDIT;type:decimal(20,4)" json:"amt_credit"`
	AmtDownPayment     decimal.NullDecimal `gorm:"column:AMT_DOWN_PAYMENT;type:decimal(20,4)" json:"amt_down_payment"`
	AmtGoodsPrice      decimal.NullDecimal `gorm:"column:AMT_GOODS_PRICE;type:decimal(20,4)" json:"amt_goods_price"`
	CntPayment         decimal.NullDecimal `gorm:"column:CNT_PAYMENT;type:decimal(10,2)" json:"cnt_payment"`
	NameContractStatus *string             `gorm:"column:NAME_CONTRACT_STATUS;size:50" json:"name_contract_status"`
	NamePortfolio      *string             `gorm:"column:NAME_PORTFOLIO;size:50" json:"name_portfolio"`
	ChannelType        *string             `gorm:"column:CHANNEL_TYPE;size:100" json:"channel_type"`
	ProductCombination *string             `gorm:"column:PRODUCT_COMBINATION;size:100" json:"product_combination"`
	DaysDecision       *int64              `gorm:"column:DAYS_DECISION" json:"days_decision"`
	DaysFirstDrawing   decimal.NullDecimal `gorm:"column:DAYS_FIRST_DRAWING;type:decimal(20,4)" json:"days_first_drawing"`
	DaysFirstDue       decimal.NullDecimal `gorm:"column:DAYS_FIRST_DUE;type:decimal(20,4)" json:"days_first_due"`
	DaysLastDue        decimal.NullDecimal `gorm:"column:DAYS_LAST_DUE;type:decimal(20,4)" json:"days_last_due"`
	DaysTermination    decimal.NullDecimal `gorm:"column:DAYS_TERMINATION;type:decimal(20,4)" json:"days_termination"`
}

func (PreviousApplication) TableName() string { return dqcheck.TablePreviousApplication }

func (p PreviousApplication) Cells() []dqcheck.Cell {
	return []dqcheck.Cell{
		{Column: "SK_ID_PREV", Value: dqcheck.NullableInt(p.SkIdPrev)},
		{Column: "SK_ID_CURR", Value: dqcheck.NullableInt(p.SkIdCurr)},
		{Column: "NAME_CONTRACT_TYPE", Value: dqcheck.NullableText(p.NameContractType)},
		{Column: "AMT_ANNUITY", Value: dqcheck.NullableDecimal(p.AmtAnnuity)},
		{Column: "AMT_APPLICATION", Value: dqcheck.NullableDecimal(p.AmtApplication)},
		{Column: "AMT_CREDIT", Value: dqcheck.NullableDecimal(p.AmtCredit)},
		{Column: "AMT_DOWN_PAYMENT", Value: dqcheck.NullableDecimal(p.AmtDownPayment)},
		{Column: "AMT_GOODS_PRICE", Value: dqcheck.NullableDecimal(p.AmtGoodsPrice)},
		{Column: "CNT_PAYMENT", Value: dqcheck.NullableDecimal(p.CntPayment)},
		{Column: "NAME_CONTRACT_STATUS", Value: dqcheck.NullableText(p.NameContractStatus)},
		{Column: "NAME_PORTFOLIO", Value: dqcheck.NullableText(p.NamePortfolio)},
		{Column: "CHANNEL_TYPE", Value: dqcheck.NullableText(p.ChannelType)},
		{Column: "PRODUCT_COMBINATION", Value: dqcheck.NullableText(p.ProductCombination)},
		{Column: "DAYS_DECISION", Value: dqcheck.NullableInt(p.DaysDecision)},
		{Column: "DAYS_FIRST_DRAWING", Value: dqcheck.NullableDecimal(p.DaysFirstDrawing)},
		{Column: "DAYS_FIRST_DUE", Value: dqcheck.NullableDecimal(p.DaysFirstDue)},
		{Column: "DAYS_LAST_DUE", Value: dqcheck.NullableDecimal(p.DaysLastDue)},
		{Column: "DAYS_TERMINATION", Value: dqcheck.NullableDecimal(p.DaysTermination)},
	}
}

type Installment struct {
	SkIdPrev            *int64              `gorm:"column:SK_ID_PREV;index" json:"sk_id_prev"`
	SkIdCurr            *int64              `gorm:"column:SK_ID_CURR;index" json:"sk_id_curr"`
	NumInstalmentNumber *int64              `gorm:"column:NUM_INSTALMENT_NUMBER" json:"num_instalment_number"`
	DaysInstalment      decimal.NullDecimal `gorm:"column:DAYS_INSTALMENT;type:decimal(20,4)" json:"days_instalment"`
	DaysEntryPayment    decimal.NullDecimal `gorm:"column:DAYS_ENTRY_PAYMENT;type:decimal(20,4)" json:"days_entry_payment"`
	AmtInstalment       decimal.NullDecimal `gorm:"column:AMT_INSTALMENT;type:decimal(20,4)" json:"amt_instalment"`
	AmtPayment          decimal.NullDecimal `gorm:"column:AMT_PAYMENT;type:decimal(20,4)" json:"amt_payment"`
}

func (Installment) TableName() string { return dqcheck.TableInstallments }

func (i Installment) Cells() []dqcheck.Cell {
	return []dqcheck.Cell{
		{Column: "SK_ID_PREV", Value: dqcheck.NullableInt(i.SkIdPrev)},
		{Column: "SK_ID_CURR", Value: dqcheck.NullableInt(i.SkIdCurr)},
		{Column: "NUM_INSTALMENT_NUMBER", Value: dqcheck.NullableInt(i.NumInstalmentNumber)},
		{Column: "DAYS_INSTALMENT", Value: dqcheck.NullableDecimal(i.DaysInstalment)},
		{Column: "DAYS_ENTRY_PAYMENT", Value: dqcheck.NullableDecimal(i.DaysEntryPayment)},
		{Column: "AMT_INSTALMENT", Value: dqcheck.NullableDecimal(i.AmtInstalment)},
		{Column: "AMT_PAYMENT", Value: dqcheck.NullableDecimal(i.AmtPayment)},
	}
}

// loadRows reads rows of one source table, optionally restricted to an
// entity, and returns them as rule-pack rows.
func loadRows[T dqcheck.Row](q *gorm.DB) ([]dqcheck.Row, error) {
	var records []T
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	rows := make([]dqcheck.Row, len(records))
	for i, r := range records {
		rows[i] = r
	}
	return rows, nil
}

func sourceRows(db *gorm.DB, table string) ([]dqcheck.Row, error) {
	switch table {
	case dqcheck.TableApplication:
		return loadRows[Application](db.Model(&Application{}))
	case dqcheck.TableBureau:
		return loadRows[Bureau](db.Model(&Bureau{}))
	case dqcheck.TablePreviousApplication:
		return loadRows[PreviousApplication](db.Model(&PreviousApplication{}))
	case dqcheck.TableInstallments:
		return loadRows[Installment](db.Model(&Installment{}))
	}
	return nil, fmt.Errorf("%s: %w", table, dqcheck.ErrUnknownTable)
}
