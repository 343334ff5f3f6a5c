package schema

// Builtin returns the registry preloaded with the entity catalog the
// engine synchronizes. External object and field names follow the
// platform's API naming; local columns follow the system of record.
func Builtin() *Registry {
	r := NewRegistry()

	r.Register(Schema{
		Name:     "account",
		External: "Account",
		Fields: []Field{
			{External: "Name", Local: "name", Kind: KindString, Required: true},
			{External: "Phone", Local: "phone", Kind: KindString},
			{External: "BillingStreet", Local: "billing_street", Kind: KindString},
			{External: "BillingCity", Local: "billing_city", Kind: KindString},
			{External: "BillingState", Local: "billing_state", Kind: KindString},
			{External: "BillingPostalCode", Local: "billing_postal_code", Kind: KindString},
			{External: "Type", Local: "account_type", Kind: KindString, Enum: "account_type"},
		},
		Enums: map[string]EnumMap{
			"account_type": {
				Forward: map[string]string{
					"Customer - Direct":  "customer",
					"Customer - Channel": "customer",
					"Prospect":           "prospect",
					"Partner":            "partner",
				},
				Reverse: map[string]string{
					"customer": "Customer - Direct",
					"prospect": "Prospect",
					"partner":  "Partner",
				},
				ForwardDefault: "other",
				ReverseDefault: "Prospect",
			},
		},
	})

	r.Register(Schema{
		Name:     "contact",
		External: "Contact",
		Fields: []Field{
			{External: "FirstName", Local: "first_name", Kind: KindString},
			{External: "LastName", Local: "last_name", Kind: KindString, Required: true},
			{External: "Email", Local: "email", Kind: KindString},
			{External: "Phone", Local: "phone", Kind: KindString},
		},
		Relations: []Relation{
			{Local: "account_id", External: "AccountId", Target: "account", Required: true},
		},
	})

	r.Register(Schema{
		Name:        "workorder",
		External:    "WorkOrder",
		NumberField: "order_number",
		Fields: []Field{
			{External: "Subject", Local: "subject", Kind: KindString, Required: true},
			{External: "Description", Local: "description", Kind: KindString},
			{External: "Status", Local: "status", Kind: KindString, Enum: "workorder_status"},
			{External: "Priority", Local: "priority", Kind: KindString, Enum: "priority"},
			{External: "WorkOrderNumber", Local: "order_number", Kind: KindString},
			{External: "StartDate", Local: "start_date", Kind: KindTime},
			{External: "EndDate", Local: "end_date", Kind: KindTime},
			{External: "TotalPrice", Local: "total_price", Kind: KindFloat},
		},
		Enums: map[string]EnumMap{
			"workorder_status": {
				Forward: map[string]string{
					"New":         "new",
					"In Progress": "in_progress",
					"On Hold":     "on_hold",
					"Completed":   "completed",
					"Closed":      "closed",
					"Cannot Complete": "cannot_complete",
				},
				Reverse: map[string]string{
					"new":             "New",
					"in_progress":     "In Progress",
					"on_hold":         "On Hold",
					"completed":       "Completed",
					"closed":          "Closed",
					"cannot_complete": "Cannot Complete",
				},
				ForwardDefault: "new",
				ReverseDefault: "New",
			},
			"priority": {
				Forward: map[string]string{
					"Low": "low", "Medium": "medium", "High": "high", "Critical": "critical",
				},
				Reverse: map[string]string{
					"low": "Low", "medium": "Medium", "high": "High", "critical": "Critical",
				},
				ForwardDefault: "medium",
				ReverseDefault: "Medium",
			},
		},
		Relations: []Relation{
			{Local: "account_id", External: "AccountId", Target: "account", Required: true},
			{Local: "contact_id", External: "ContactId", Target: "contact"},
			{Local: "territory_id", External: "ServiceTerritoryId", Target: "serviceterritory"},
		},
	})

	r.Register(Schema{
		Name:     "appointment",
		External: "ServiceAppointment",
		Fields: []Field{
			{External: "Subject", Local: "subject", Kind: KindString},
			{External: "Status", Local: "status", Kind: KindString, Enum: "appointment_status"},
			{External: "SchedStartTime", Local: "scheduled_start", Kind: KindTime},
			{External: "SchedEndTime", Local: "scheduled_end", Kind: KindTime},
			{External: "ActualStartTime", Local: "actual_start", Kind: KindTime},
			{External: "ActualEndTime", Local: "actual_end", Kind: KindTime},
		},
		Enums: map[string]EnumMap{
			"appointment_status": {
				Forward: map[string]string{
					"None":        "unscheduled",
					"Scheduled":   "scheduled",
					"Dispatched":  "dispatched",
					"In Progress": "in_progress",
					"Completed":   "completed",
					"Canceled":    "canceled",
				},
				Reverse: map[string]string{
					"unscheduled": "None",
					"scheduled":   "Scheduled",
					"dispatched":  "Dispatched",
					"in_progress": "In Progress",
					"completed":   "Completed",
					"canceled":    "Canceled",
				},
				ForwardDefault: "unscheduled",
				ReverseDefault: "None",
			},
		},
		Relations: []Relation{
			{Local: "workorder_id", External: "ParentRecordId", Target: "workorder", Required: true},
		},
	})

	r.Register(Schema{
		Name:     "caserecord",
		External: "Case",
		Fields: []Field{
			{External: "Subject", Local: "subject", Kind: KindString, Required: true},
			{External: "Description", Local: "description", Kind: KindString},
			{External: "Status", Local: "status", Kind: KindString, Enum: "case_status"},
			{External: "Origin", Local: "origin", Kind: KindString},
		},
		Enums: map[string]EnumMap{
			"case_status": {
				Forward: map[string]string{
					"New": "new", "Working": "working", "Escalated": "escalated", "Closed": "closed",
				},
				Reverse: map[string]string{
					"new": "New", "working": "Working", "escalated": "Escalated", "closed": "Closed",
				},
				ForwardDefault: "new",
				ReverseDefault: "New",
			},
		},
		Relations: []Relation{
			{Local: "account_id", External: "AccountId", Target: "account", Required: true},
			{Local: "contact_id", External: "ContactId", Target: "contact"},
		},
	})

	r.Register(Schema{
		Name:        "invoice",
		External:    "Invoice__c",
		NumberField: "invoice_number",
		Fields: []Field{
			{External: "Name", Local: "invoice_number", Kind: KindString, Required: true},
			{External: "Status__c", Local: "status", Kind: KindString, Enum: "invoice_status"},
			{External: "Amount__c", Local: "amount", Kind: KindFloat},
			{External: "DueDate__c", Local: "due_date", Kind: KindTime},
			{External: "PaidDate__c", Local: "paid_date", Kind: KindTime},
		},
		Enums: map[string]EnumMap{
			"invoice_status": {
				Forward: map[string]string{
					"Draft": "draft", "Sent": "sent", "Paid": "paid", "Void": "void", "Past Due": "past_due",
				},
				Reverse: map[string]string{
					"draft": "Draft", "sent": "Sent", "paid": "Paid", "void": "Void", "past_due": "Past Due",
				},
				ForwardDefault: "draft",
				ReverseDefault: "Draft",
			},
		},
		Relations: []Relation{
			{Local: "account_id", External: "Account__c", Target: "account", Required: true},
			{Local: "workorder_id", External: "WorkOrder__c", Target: "workorder"},
		},
	})

	r.Register(Schema{
		Name:     "invoiceline",
		External: "InvoiceLine__c",
		Fields: []Field{
			{External: "Description__c", Local: "description", Kind: KindString},
			{External: "Quantity__c", Local: "quantity", Kind: KindFloat},
			{External: "UnitPrice__c", Local: "unit_price", Kind: KindFloat},
		},
		Relations: []Relation{
			{Local: "invoice_id", External: "Invoice__c", Target: "invoice", Required: true},
			{Local: "product_id", External: "Product__c", Target: "product"},
		},
	})

	r.Register(Schema{
		Name:     "commission",
		External: "Commission__c",
		Fields: []Field{
			{External: "Amount__c", Local: "amount", Kind: KindFloat, Required: true},
			{External: "Rate__c", Local: "rate", Kind: KindFloat},
			{External: "PayPeriod__c", Local: "pay_period", Kind: KindString},
			{External: "Status__c", Local: "status", Kind: KindString, Enum: "commission_status"},
		},
		Enums: map[string]EnumMap{
			"commission_status": {
				Forward: map[string]string{
					"Pending": "pending", "Approved": "approved", "Paid": "paid",
				},
				Reverse: map[string]string{
					"pending": "Pending", "approved": "Approved", "paid": "Paid",
				},
				ForwardDefault: "pending",
				ReverseDefault: "Pending",
			},
		},
		Relations: []Relation{
			{Local: "workorder_id", External: "WorkOrder__c", Target: "workorder", Required: true},
		},
	})

	r.Register(Schema{
		Name:     "document",
		External: "ContentDocument",
		Fields: []Field{
			{External: "Title", Local: "title", Kind: KindString, Required: true},
			{External: "FileType", Local: "file_type", Kind: KindString},
			{External: "ContentSize", Local: "content_size", Kind: KindFloat},
		},
		Relations: []Relation{
			{Local: "workorder_id", External: "LinkedRecordId", Target: "workorder"},
		},
	})

	r.Register(Schema{
		Name:     "timesheet",
		External: "TimeSheetEntry",
		Fields: []Field{
			{External: "StartTime", Local: "start_time", Kind: KindTime, Required: true},
			{External: "EndTime", Local: "end_time", Kind: KindTime},
			{External: "Type", Local: "entry_type", Kind: KindString},
		},
		Relations: []Relation{
			{Local: "workorder_id", External: "WorkOrderId", Target: "workorder", Required: true},
		},
	})

	r.Register(Schema{
		Name:     "product",
		External: "Product2",
		Fields: []Field{
			{External: "Name", Local: "name", Kind: KindString, Required: true},
			{External: "ProductCode", Local: "product_code", Kind: KindString},
			{External: "IsActive", Local: "active", Kind: KindBool},
		},
	})

	r.Register(Schema{
		Name:     "pricebookentry",
		External: "PricebookEntry",
		Fields: []Field{
			{External: "UnitPrice", Local: "unit_price", Kind: KindFloat, Required: true},
			{External: "IsActive", Local: "active", Kind: KindBool},
		},
		Relations: []Relation{
			{Local: "product_id", External: "Product2Id", Target: "product", Required: true},
		},
	})

	r.Register(Schema{
		Name:     "payment",
		External: "Payment__c",
		Fields: []Field{
			{External: "Amount__c", Local: "amount", Kind: KindFloat, Required: true},
			{External: "Method__c", Local: "method", Kind: KindString, Enum: "payment_method"},
			{External: "ReceivedDate__c", Local: "received_date", Kind: KindTime},
		},
		Enums: map[string]EnumMap{
			"payment_method": {
				Forward: map[string]string{
					"Credit Card": "card", "Check": "check", "Cash": "cash", "ACH": "ach",
				},
				Reverse: map[string]string{
					"card": "Credit Card", "check": "Check", "cash": "Cash", "ach": "ACH",
				},
				ForwardDefault: "other",
				ReverseDefault: "Check",
			},
		},
		Relations: []Relation{
			{Local: "invoice_id", External: "Invoice__c", Target: "invoice", Required: true},
		},
	})

	r.Register(Schema{
		Name:     "note",
		External: "Note",
		Fields: []Field{
			{External: "Title", Local: "title", Kind: KindString},
			{External: "Body", Local: "body", Kind: KindString},
		},
		Relations: []Relation{
			{Local: "account_id", External: "ParentId", Target: "account", Required: true},
		},
	})

	r.Register(Schema{
		Name:     "serviceterritory",
		External: "ServiceTerritory",
		Fields: []Field{
			{External: "Name", Local: "name", Kind: KindString, Required: true},
			{External: "IsActive", Local: "active", Kind: KindBool},
		},
	})

	if err := r.Validate(); err != nil {
		panic("schema: builtin catalog: " + err.Error())
	}
	return r
}
