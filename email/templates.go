package email

const htmlTemplates = `
{{define "lines"}}
<table cellpadding="6" cellspacing="0" border="1" style="border-collapse:collapse">
<tr><th>Type</th><th>Item</th><th>Qty</th><th>Price</th><th>Total</th></tr>
{{range .Lines}}<tr><td>{{.Category}}</td><td>{{.Name}}{{if .SKU}} ({{.SKU}}){{end}}{{if .HasPDF}} &#128206;{{end}}</td><td>{{.Quantity}}</td><td>${{.Price}}</td><td>${{.LineTotal}}</td></tr>
{{end}}</table>
<p>Subtotal: ${{.Subtotal}}<br>Shipping: ${{.Shipping}}<br>GST: ${{.GST}}<br><strong>Total: ${{.Total}} AUD</strong></p>
{{end}}

{{define "address"}}
<p>{{.Customer.FirstName}} {{.Customer.LastName}}<br>
{{if .Customer.Company}}{{.Customer.Company}}<br>{{end}}
{{.Customer.AddressLine1}}<br>
{{if .Customer.AddressLine2}}{{.Customer.AddressLine2}}<br>{{end}}
{{.Customer.City}} {{.Customer.State}} {{.Customer.Postcode}}<br>
{{.Customer.Country}}</p>
{{end}}

{{define "customer"}}<html><body>
{{if .TestingMode}}<p><strong>TEST ORDER. No payment was taken.</strong></p>{{end}}
<h2>Thanks for your order, {{.Customer.FirstName}}</h2>
<p>Your order number is <strong>{{.OrderNumber}}</strong>. Keep it handy if you contact us.</p>
{{template "lines" .}}
<h3>Shipping to</h3>
{{template "address" .}}
<p>{{.StoreName}}</p>
</body></html>{{end}}

{{define "internal"}}<html><body>
{{if .TestingMode}}<p><strong>TEST ORDER</strong></p>{{end}}
<h2>Order {{.OrderNumber}}</h2>
<p>Placed {{.PlacedAt}}<br>PayPal order: {{.PayPalOrderID}}<br>Capture: {{.CaptureID}}</p>
<h3>Customer</h3>
<p>{{.CustomerName}}<br>{{.Customer.Email}}<br>{{.Customer.Phone}}</p>
{{template "address" .}}
{{template "lines" .}}
</body></html>{{end}}
`

const textTemplates = `
{{define "lines"}}{{range .Lines}}- {{.Quantity}} x {{.Name}}{{if .SKU}} ({{.SKU}}){{end}} [{{.Category}}] @ ${{.Price}} = ${{.LineTotal}}
{{end}}
Subtotal: ${{.Subtotal}}
Shipping: ${{.Shipping}}
GST:      ${{.GST}}
Total:    ${{.Total}} AUD
{{end}}

{{define "address"}}{{.Customer.FirstName}} {{.Customer.LastName}}
{{if .Customer.Company}}{{.Customer.Company}}
{{end}}{{.Customer.AddressLine1}}
{{if .Customer.AddressLine2}}{{.Customer.AddressLine2}}
{{end}}{{.Customer.City}} {{.Customer.State}} {{.Customer.Postcode}}
{{.Customer.Country}}
{{end}}

{{define "customer"}}{{if .TestingMode}}TEST ORDER. No payment was taken.

{{end}}Thanks for your order, {{.Customer.FirstName}}.

Order number: {{.OrderNumber}}

{{template "lines" .}}
Shipping to:
{{template "address" .}}
{{.StoreName}}
{{end}}

{{define "internal"}}{{if .TestingMode}}TEST ORDER

{{end}}Order {{.OrderNumber}}
Placed: {{.PlacedAt}}
PayPal order: {{.PayPalOrderID}}
Capture: {{.CaptureID}}

Customer: {{.CustomerName}} <{{.Customer.Email}}> {{.Customer.Phone}}
{{template "address" .}}
{{template "lines" .}}{{end}}
`
