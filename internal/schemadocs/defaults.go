/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Built-in Schema Documents
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package schemadocs holds the schema descriptions given to the SQL
// generator and loads additional ones from disk.
package schemadocs

// Document is one piece of schema documentation.
type Document struct {
	Source  string `yaml:"source,omitempty" json:"source,omitempty"`
	Title   string `yaml:"title" json:"title"`
	Content string `yaml:"content" json:"content"`
}

const customersSnippet = `Table: Customers
Description: Stores customer profiles.
Columns:
  - CustomerId (INTEGER, primary key)
  - Name (VARCHAR(100))
  - Email (VARCHAR(255))
  - Country (VARCHAR(100))
  - CreatedAt (TIMESTAMP, signup timestamp)
Example query:
  SELECT Country, COUNT(*) AS CustomerCount
  FROM Customers
  GROUP BY Country;`

const ordersSnippet = `Table: Orders
Description: Stores purchase orders made by customers.
Columns:
  - OrderId (INTEGER, primary key)
  - CustomerId (INTEGER, foreign key to Customers.CustomerId)
  - OrderDate (TIMESTAMP, order timestamp)
  - Amount (DECIMAL(18,2), order total)
  - Status (VARCHAR(50), e.g. 'PAID','PENDING','CANCELLED')
Example query:
  SELECT TO_CHAR(OrderDate, 'YYYY-MM') AS YearMonth,
         SUM(Amount) AS TotalRevenue
  FROM Orders
  WHERE Status = 'PAID'
  GROUP BY TO_CHAR(OrderDate, 'YYYY-MM');`

// Defaults returns the built-in Customers and Orders documents.
func Defaults() []Document {
	return []Document{
		{Source: "builtin", Title: "Customers", Content: customersSnippet},
		{Source: "builtin", Title: "Orders", Content: ordersSnippet},
	}
}

// DefaultSnippets returns the content of the built-in documents.
func DefaultSnippets() []string {
	docs := Defaults()
	snippets := make([]string, len(docs))
	for i, d := range docs {
		snippets[i] = d.Content
	}
	return snippets
}
