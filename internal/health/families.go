package health

import "strings"

// FamilyOther is the family of resource types no rule matches.
const FamilyOther = "other"

// Rules are checked in order against the resource type with its provider
// prefix removed; the first match wins. Keys of three characters or fewer
// must equal a whole underscore-separated token, longer keys match as
// substrings.
var familyRules = []struct {
	family string
	keys   []string
}{
	{"dns", []string{"route53", "dns", "hosted_zone"}},
	{"cdn", []string{"cloudfront", "cdn"}},
	{"certificates", []string{"acm", "certificate"}},
	{"api", []string{"api_gateway", "apigateway"}},
	{"networking-security", []string{"security_group", "network_acl", "firewall", "waf"}},
	{"load-balancing", []string{"lb", "alb", "nlb", "elb", "load_balancer", "target_group", "listener"}},
	{"networking-core", []string{"vpc", "subnet", "route", "internet_gateway", "nat_gateway", "eip", "virtual_network", "compute_network", "network_interface"}},
	{"containers", []string{"eks", "ecs", "ecr", "kubernetes", "container"}},
	{"serverless", []string{"lambda", "function"}},
	{"database", []string{"rds", "db", "dynamodb", "elasticache", "sql", "mssql", "mysql", "postgresql", "redshift", "docdb"}},
	{"storage", []string{"s3", "bucket", "efs", "ebs", "storage", "volume"}},
	{"monitoring", []string{"cloudwatch", "log_group", "alarm", "metric", "monitor"}},
	{"messaging", []string{"sns", "sqs", "eventbridge", "kinesis", "pubsub"}},
	{"security", []string{"iam", "kms", "secret", "role", "policy"}},
	{"compute", []string{"instance", "launch_template", "autoscaling", "virtual_machine"}},
}

// Family returns the functional family of a resource type, such as
// "networking-core" for aws_subnet.
func Family(resourceType string) string {
	t := strings.ToLower(resourceType)
	if i := strings.IndexByte(t, '_'); i > 0 {
		t = t[i+1:]
	}
	tokens := strings.Split(t, "_")
	for _, rule := range familyRules {
		for _, k := range rule.keys {
			if len(k) <= 3 {
				for _, tok := range tokens {
					if tok == k {
						return rule.family
					}
				}
				continue
			}
			if strings.Contains(t, k) {
				return rule.family
			}
		}
	}
	return FamilyOther
}

// providerPrefix returns the provider part of a resource type.
func providerPrefix(resourceType string) string {
	if i := strings.IndexByte(resourceType, '_'); i > 0 {
		return resourceType[:i]
	}
	return resourceType
}
