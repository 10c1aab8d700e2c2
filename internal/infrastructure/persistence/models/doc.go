// Package models contains the GORM persistence models. Each model maps
// one domain aggregate or entity to its table and converts both ways via
// ToDomain/FromDomain; domain packages never see GORM tags.
package models
