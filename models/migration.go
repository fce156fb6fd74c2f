package models

import (
	"log"

	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Unit{}, &Product{}, &ProductUnitRate{},
		&Position{},
		&Lot{}, &LotItem{}, &LotEvent{},
		&OrderDocument{}, &OrderDocumentLine{},
		&AccountingBalance{},
		&DocumentNumberSeries{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
