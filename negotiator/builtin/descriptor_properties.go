package builtin

// Well-known demand property names used by the signature-gated
// components. A real market puts the requestor's NodeId and an
// optional signed node descriptor directly on the demand; these
// constants name where AllowOnly/Blacklist/AuditedPayload look for them.
const (
	propIssuer         = "golem.node.issuer"
	propNodeDescriptor = "golem.node.descriptor"
	propAuditedPayload = "golem.srv.comp.audited-payload"
)
